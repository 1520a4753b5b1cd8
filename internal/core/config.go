package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	envJWTSecret        = "JWT_SECRET"
	envConnectionString = "DATABASE_CONNECTION_STRING"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Storage struct {
	Type             string `yaml:"type"`
	Directory        string `yaml:"directory"`
	ConnectionString string `yaml:"connectionString"`
}

// Location returns the backend-specific target: a directory for the
// filesystem backend, a connection string for the sqlite backend.
func (s Storage) Location() string {
	if s.Type == "sqlite" {
		return s.ConnectionString
	}
	return s.Directory
}

type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type RateLimit struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

type ServiceConfig struct {
	Port          int       `yaml:"port"`
	PublicBaseURL string    `yaml:"publicBaseURL"`
	Database      Database  `yaml:"database"`
	Storage       Storage   `yaml:"storage"`
	Auth          Auth      `yaml:"auth"`
	RateLimit     RateLimit `yaml:"rateLimit"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.applyEnvironment()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

// Secrets usually live in the environment rather than in the YAML file.
func (c *ServiceConfig) applyEnvironment() {
	if secret := os.Getenv(envJWTSecret); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if connectionString := os.Getenv(envConnectionString); connectionString != "" {
		c.Database.ConnectionString = connectionString
	}
}

func (c *ServiceConfig) applyDefaults() {
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "filesystem"
	}
	if c.Storage.Type == "filesystem" && c.Storage.Directory == "" {
		c.Storage.Directory = "uploads"
	}
}

// Validate ensures the configuration can be used to start the service
func (c *ServiceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	switch c.Database.Type {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database connectionString is required")
	}

	switch c.Storage.Type {
	case "filesystem", "sqlite":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Storage.Location() == "" {
		return fmt.Errorf("storage %s requires a location", c.Storage.Type)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rateLimit requestsPerSecond and burst must be positive when enabled")
	}

	return nil
}
