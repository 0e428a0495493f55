package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config carries all environment-driven settings shared by the server,
// worker and fetcher binaries.
type Config struct {
	DBHost          string `validate:"required"`
	DBPort          int    `validate:"min=1,max=65535"`
	DBName          string `validate:"required"`
	DBUser          string `validate:"required"`
	DBPasswordParam string

	Bucket      string
	Prefix      string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	IngestQueue string
	TenderTopic string

	PageSize      int `validate:"min=1,max=1000"`
	MaxPages      int `validate:"min=1"`
	ThrottleMs    int `validate:"min=0"`
	UseConcurrent bool

	TZOffset string `validate:"required"`
	Port     string
}

// Load reads the configuration from the environment, applying the defaults
// the portals were built against, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		DBHost:          getenv("DB_HOST", "127.0.0.1"),
		DBPort:          getenvInt("DB_PORT", 5432),
		DBName:          getenv("DB_NAME", "tendertool"),
		DBUser:          getenv("DB_USER", "postgres"),
		DBPasswordParam: os.Getenv("DB_PASSWORD_PARAM"),

		Bucket:      getenv("BUCKET", "tendertool-raw"),
		Prefix:      os.Getenv("PREFIX"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),

		IngestQueue: getenv("INGEST_QUEUE_URL", "ingest_queue"),
		TenderTopic: getenv("TENDER_TOPIC_ARN", "tender-notifications"),

		PageSize:      getenvInt("PAGE_SIZE", 50),
		MaxPages:      getenvInt("MAX_PAGES", 200),
		ThrottleMs:    getenvInt("THROTTLE_MS", 500),
		UseConcurrent: getenv("USE_CONCURRENT", "false") == "true",

		TZOffset: getenv("TZ_OFFSET", "+02:00"),
		Port:     getenv("PORT", "8081"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := ParseOffset(cfg.TZOffset); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the configured local zone for sources that publish
// naive timestamps. Load has already validated the offset.
func (c *Config) Location() *time.Location {
	loc, err := ParseOffset(c.TZOffset)
	if err != nil {
		return time.FixedZone("SAST", 2*3600)
	}
	return loc
}

// ParseOffset converts a "+HH:MM" style offset into a fixed time.Location.
func ParseOffset(offset string) (*time.Location, error) {
	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') || offset[3] != ':' {
		return nil, fmt.Errorf("invalid TZ_OFFSET %q, want ±HH:MM", offset)
	}
	hours, err := strconv.Atoi(offset[1:3])
	if err != nil {
		return nil, fmt.Errorf("invalid TZ_OFFSET %q: %w", offset, err)
	}
	minutes, err := strconv.Atoi(offset[4:6])
	if err != nil {
		return nil, fmt.Errorf("invalid TZ_OFFSET %q: %w", offset, err)
	}

	seconds := hours*3600 + minutes*60
	if offset[0] == '-' {
		seconds = -seconds
	}
	return time.FixedZone("UTC"+offset, seconds), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
