package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	redisCounterKey = "reports:counter"
	redisIDsKey     = "reports:ids"
)

// insertReportScript claims the report hash, writes its fields and
// indexes the id in one step, so a claimed id is always visible to
// GetMaxReportID. Returns 0 when the id is already taken.
var insertReportScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'report_id', ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'name', ARGV[2], 'contact_details', ARGV[3],
	'issue_category', ARGV[4], 'description', ARGV[5],
	'manual_location_input', ARGV[6], 'status', ARGV[7],
	'submitted_at', ARGV[8], 'updated_at', ARGV[9])
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[1])
return 1
`)

var insertImageScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'image_id', ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'report_id', ARGV[2], 'image_url', ARGV[3], 'uploaded_at', ARGV[4])
return 1
`)

// RedisDatabase keeps reports in hashes. Uniqueness of report_id is
// enforced by an HSETNX claim inside a script that also writes the
// remaining fields.
type RedisDatabase struct {
	client *redis.Client
}

func NewRedisDatabase(connectionString string) (*RedisDatabase, error) {
	options, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid redis connection string: %w", err)
	}
	return &RedisDatabase{client: redis.NewClient(options)}, nil
}

// redisReport mirrors Report with go-redis scan tags.
type redisReport struct {
	ReportID            int64  `redis:"report_id"`
	Name                string `redis:"name"`
	ContactDetails      string `redis:"contact_details"`
	IssueCategory       string `redis:"issue_category"`
	Description         string `redis:"description"`
	ManualLocationInput string `redis:"manual_location_input"`
	Status              string `redis:"status"`
	SubmittedAt         string `redis:"submitted_at"`
	UpdatedAt           string `redis:"updated_at"`
}

type redisImage struct {
	ImageID    string `redis:"image_id"`
	ReportID   int64  `redis:"report_id"`
	ImageURL   string `redis:"image_url"`
	UploadedAt string `redis:"uploaded_at"`
}

func reportKey(reportID int64) string {
	return "reports:report:" + strconv.FormatInt(reportID, 10)
}

func imageKey(reportID int64) string {
	return reportKey(reportID) + ":image"
}

// CreateDatabase only verifies connectivity; redis needs no schema.
func (r *RedisDatabase) CreateDatabase() error {
	return r.client.Ping(context.Background()).Err()
}

func (r *RedisDatabase) DoesDatabaseExist() bool {
	return r.client.Ping(context.Background()).Err() == nil
}

func (r *RedisDatabase) Close() error {
	return r.client.Close()
}

func (r *RedisDatabase) GetCounter(ctx context.Context) (int64, error) {
	nextID, err := r.client.Get(ctx, redisCounterKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCounterNotFound
	}
	if err != nil {
		return 0, err
	}
	return nextID, nil
}

func (r *RedisDatabase) CreateCounter(ctx context.Context, nextID int64) error {
	created, err := r.client.SetNX(ctx, redisCounterKey, nextID, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrCounterExists
	}
	return nil
}

func (r *RedisDatabase) UpdateCounter(ctx context.Context, nextID int64) error {
	updated, err := r.client.SetXX(ctx, redisCounterKey, nextID, 0).Result()
	if err != nil {
		return err
	}
	if !updated {
		return ErrCounterNotFound
	}
	return nil
}

func (r *RedisDatabase) InsertReport(ctx context.Context, report *Report) error {
	inserted, err := insertReportScript.Run(ctx, r.client,
		[]string{reportKey(report.ReportID), redisIDsKey},
		report.ReportID,
		report.Name,
		report.ContactDetails,
		report.IssueCategory,
		report.Description,
		report.ManualLocationInput,
		string(report.Status),
		report.SubmittedAt,
		report.UpdatedAt,
	).Int()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return fmt.Errorf("%w: %d", ErrDuplicateReportID, report.ReportID)
	}
	return nil
}

func (r *RedisDatabase) GetMaxReportID(ctx context.Context) (int64, error) {
	top, err := r.client.ZRevRangeWithScores(ctx, redisIDsKey, 0, 0).Result()
	if err != nil {
		return 0, err
	}
	if len(top) == 0 {
		return 0, nil
	}
	return int64(top[0].Score), nil
}

func (r *RedisDatabase) GetReport(ctx context.Context, reportID int64) (*Report, error) {
	cmd := r.client.HGetAll(ctx, reportKey(reportID))
	fields, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrReportNotFound
	}

	var stored redisReport
	if err := cmd.Scan(&stored); err != nil {
		return nil, fmt.Errorf("failed to decode report %d: %w", reportID, err)
	}
	return &Report{
		ReportID:            stored.ReportID,
		Name:                stored.Name,
		ContactDetails:      stored.ContactDetails,
		IssueCategory:       stored.IssueCategory,
		Description:         stored.Description,
		ManualLocationInput: stored.ManualLocationInput,
		Status:              Status(stored.Status),
		SubmittedAt:         stored.SubmittedAt,
		UpdatedAt:           stored.UpdatedAt,
	}, nil
}

func (r *RedisDatabase) InsertImage(ctx context.Context, image *Image) error {
	inserted, err := insertImageScript.Run(ctx, r.client,
		[]string{imageKey(image.ReportID)},
		image.ImageID, image.ReportID, image.ImageURL, image.UploadedAt,
	).Int()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return fmt.Errorf("%w: %d", ErrDuplicateImage, image.ReportID)
	}
	return nil
}

func (r *RedisDatabase) GetImagesByReportID(ctx context.Context, reportID int64) ([]*Image, error) {
	cmd := r.client.HGetAll(ctx, imageKey(reportID))
	fields, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var stored redisImage
	if err := cmd.Scan(&stored); err != nil {
		return nil, fmt.Errorf("failed to decode image of report %d: %w", reportID, err)
	}
	return []*Image{{
		ImageID:    stored.ImageID,
		ReportID:   stored.ReportID,
		ImageURL:   stored.ImageURL,
		UploadedAt: stored.UploadedAt,
	}}, nil
}
