package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/site-content/pkg/sitecontent/api"
)

// envConfig is the environment surface of ServerConfig. Defaults match
// defaults(), so WithEnv yields the library defaults for unset variables.
type envConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DocumentKey string `env:"DOCUMENT_KEY" env-default:"site-content"`
	SeedFile    string `env:"SEED_FILE"`

	StorageURL    string `env:"STORAGE_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBSchema      string `env:"DB_SCHEMA"`
	PostgresTable string `env:"CONTENT_TABLE" env-default:"site_content"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION" env-default:"us-east-1"`

	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisChannel  string `env:"REDIS_CHANNEL" env-default:"site-content:invalidate"`
	RedisStream   string `env:"REDIS_STREAM"`

	RevalidateURL     string        `env:"REVALIDATE_URL"`
	RevalidateSecret  string        `env:"REVALIDATE_SECRET"`
	SectionViews      bool          `env:"INVALIDATE_SECTION_VIEWS" env-default:"true"`
	InvalidateTimeout time.Duration `env:"INVALIDATE_TIMEOUT" env-default:"5s"`
	LogInvalidations  bool          `env:"LOG_INVALIDATIONS" env-default:"true"`
	ViewCacheTTL      time.Duration `env:"VIEW_CACHE_TTL" env-default:"5m"`

	JWTSecret      string `env:"JWT_SECRET"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" env-default:"localhost:3000"`
	MaxBodyBytes   int64  `env:"MAX_BODY_BYTES" env-default:"1048576"`
}

// WithEnv applies environment variables. Unset variables fall back to the
// library defaults, so apply WithEnv before programmatic options.
//
// Store selection:
//
//	STORAGE_URL - one of:
//	              "memory://"                  in-memory store (default)
//	              "file:///var/lib/site"       one JSON file per document
//	              "postgres://user@host/db"    JSONB table (postgresql:// works too)
//	              "s3://bucket?region=eu-west-1&endpoint=http://minio:9000&prefix=content/&path_style=true&create_bucket=true"
//	DATABASE_URL - used as STORAGE_URL when STORAGE_URL is unset
//
// Invalidation: REDIS_ADDRESS, REDIS_CHANNEL, REDIS_STREAM, REVALIDATE_URL,
// REVALIDATE_SECRET, INVALIDATE_SECTION_VIEWS, INVALIDATE_TIMEOUT.
//
// HTTP: PORT, JWT_SECRET, ALLOWED_ORIGINS (comma separated, scheme-less
// entries allow http and https), MAX_BODY_BYTES.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return env.apply(c)
	}
}

// WithEnvFile reads variables from a .env style file. The file's variables
// are exported to the process environment before it is read.
func WithEnvFile(path string) Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadConfig(path, &env); err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		return env.apply(c)
	}
}

// EnvUsage describes the environment variables WithEnv reads
func EnvUsage() string {
	var env envConfig
	usage, err := cleanenv.GetDescription(&env, nil)
	if err != nil {
		return ""
	}
	return usage
}

func (e envConfig) apply(c *ServerConfig) error {
	c.Port = e.Port
	c.Environment = e.Environment
	c.DocumentKey = e.DocumentKey
	c.SeedFile = e.SeedFile
	c.DBSchema = e.DBSchema
	c.PostgresTable = e.PostgresTable

	c.S3AccessKeyID = e.AWSAccessKeyID
	c.S3SecretKey = e.AWSSecretAccessKey
	c.S3Region = e.AWSRegion

	c.RedisAddress = e.RedisAddress
	c.RedisPassword = e.RedisPassword
	c.RedisDB = e.RedisDB
	c.RedisChannel = e.RedisChannel
	c.RedisStream = e.RedisStream

	c.RevalidateURL = e.RevalidateURL
	c.RevalidateSecret = e.RevalidateSecret
	c.SectionViews = e.SectionViews
	c.InvalidateTimeout = e.InvalidateTimeout
	c.LogInvalidations = e.LogInvalidations
	c.ViewCacheTTL = e.ViewCacheTTL

	c.JWTSecret = e.JWTSecret
	c.AllowedOrigins = api.ExpandOrigins(e.AllowedOrigins)
	c.MaxBodyBytes = e.MaxBodyBytes

	storageURL := e.StorageURL
	if storageURL == "" {
		storageURL = e.DatabaseURL
	}
	return applyStorageURL(storageURL, c)
}

// applyStorageURL selects the store from a storage URL
func applyStorageURL(storageURL string, c *ServerConfig) error {
	switch {
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		c.StorageType = "memory"
		return nil

	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.StorageType = "fs"
		c.BaseDir = path
		return nil

	case strings.HasPrefix(storageURL, "postgres://"), strings.HasPrefix(storageURL, "postgresql://"):
		c.StorageType = "postgres"
		c.DatabaseURL = storageURL
		return nil

	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3Storage(storageURL, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 'postgres://...' or 's3://...')", storageURL)
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000
func applyS3Storage(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	c.StorageType = "s3"
	c.S3Bucket = u.Host

	q := u.Query()
	if v := q.Get("region"); v != "" {
		c.S3Region = v
	}
	if v := q.Get("endpoint"); v != "" {
		c.S3Endpoint = v
	}
	if v := q.Get("prefix"); v != "" {
		c.S3Prefix = v
	}
	if c.S3PathStyle, err = parseBoolParam(q, "path_style", c.S3PathStyle); err != nil {
		return err
	}
	if c.S3CreateBucket, err = parseBoolParam(q, "create_bucket", c.S3CreateBucket); err != nil {
		return err
	}
	return nil
}

func parseBoolParam(q url.Values, key string, fallback bool) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s in STORAGE_URL: %w", key, err)
	}
	return parsed, nil
}
