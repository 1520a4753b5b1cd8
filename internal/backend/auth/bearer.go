package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const claimsContextKey = "adminClaims"

var (
	ErrSecretNotConfigured = errors.New("JWT secret not configured on the server")
	ErrInvalidCredentials  = errors.New("could not validate credentials")
)

// AdminClaims is the subset of token claims the admin endpoints use.
type AdminClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken checks the HS256 signature and expiry of rawToken and
// requires a subject. The audience is deliberately not checked.
func ValidateToken(secret, rawToken string) (*AdminClaims, error) {
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	return claims, nil
}

// BearerAuth protects routes with a bearer token signed by secret.
// A missing secret is a server fault (500), anything wrong with the token
// is a 401 carrying a Bearer challenge.
func BearerAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if secret == "" {
				slog.Error("BearerAuth: rejecting request", "error", ErrSecretNotConfigured)
				return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": ErrSecretNotConfigured.Error()})
			}

			rawToken, ok := bearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(ctx)
			}
			claims, err := ValidateToken(secret, rawToken)
			if err != nil {
				slog.Info("BearerAuth: token rejected", "error", err, "path", ctx.Path())
				return unauthorized(ctx)
			}

			ctx.Set(claimsContextKey, claims)
			return next(ctx)
		}
	}
}

// ClaimsFromContext returns the claims stored by BearerAuth.
func ClaimsFromContext(ctx echo.Context) (*AdminClaims, bool) {
	claims, ok := ctx.Get(claimsContextKey).(*AdminClaims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(ctx echo.Context) error {
	ctx.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": ErrInvalidCredentials.Error()})
}
