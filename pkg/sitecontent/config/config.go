package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/site-content/pkg/sitecontent"
	redisinv "github.com/tendant/site-content/pkg/sitecontent/invalidate/redis"
	"github.com/tendant/site-content/pkg/sitecontent/invalidate/webhook"
	"github.com/tendant/site-content/pkg/sitecontent/store/fs"
	"github.com/tendant/site-content/pkg/sitecontent/store/memory"
	pgstore "github.com/tendant/site-content/pkg/sitecontent/store/postgres"
	s3store "github.com/tendant/site-content/pkg/sitecontent/store/s3"
	"github.com/tendant/site-content/pkg/sitecontent/viewcache"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:              "8080",
		Environment:       "development",
		DocumentKey:       sitecontent.DefaultDocumentKey,
		StorageType:       "memory",
		PostgresTable:     pgstore.DefaultTable,
		S3Region:          "us-east-1",
		RedisChannel:      redisinv.DefaultChannel,
		SectionViews:      true,
		InvalidateTimeout: 5 * time.Second,
		ViewCacheTTL:      5 * time.Minute,
		AllowedOrigins:    []string{"http://localhost:3000", "https://localhost:3000"},
		MaxBodyBytes:      1 << 20,
		LogInvalidations:  true,
	}
}

// ServerConfig represents configuration for the site content service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Document served by the HTTP API
	DocumentKey string
	// SeedFile is saved under DocumentKey at startup when nothing is stored yet
	SeedFile string

	// Store configuration
	StorageType    string // "memory", "fs", "postgres", "s3"
	BaseDir        string // fs
	DatabaseURL    string // postgres
	DBSchema       string // postgres search_path
	PostgresTable  string // postgres
	S3Bucket       string
	S3Region       string
	S3Prefix       string
	S3Endpoint     string
	S3AccessKeyID  string
	S3SecretKey    string
	S3PathStyle    bool
	S3CreateBucket bool

	// Invalidation
	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	RedisChannel      string
	RedisStream       string
	RevalidateURL     string
	RevalidateSecret  string
	SectionViews      bool // also invalidate the views of touched sections
	InvalidateTimeout time.Duration
	LogInvalidations  bool

	// Page view cache; zero disables it
	ViewCacheTTL time.Duration

	// HTTP
	JWTSecret      string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.DocumentKey == "" {
		return errors.New("document key is required")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.BaseDir == "" {
			return errors.New("base_dir is required when using fs storage")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("storage type must be 'memory', 'fs', 'postgres' or 's3', got: %s", c.StorageType)
	}

	if c.InvalidateTimeout <= 0 {
		return errors.New("invalidate timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}

	return nil
}

// Runtime holds the service and the collaborators built around it
type Runtime struct {
	Service    sitecontent.Service
	Store      sitecontent.Store
	Cache      *viewcache.Cache
	Subscriber *redisinv.Subscriber
	Metrics    *sitecontent.Metrics

	closers []func()
}

// Close releases connections opened by Build. Call it after Service.Wait.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Build creates the store, invalidators and service described by the
// configuration. reg may be nil to skip metrics.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	store, closeStore, err := c.BuildStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build store: %w", err)
	}
	rt.Store = store
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	options := []sitecontent.Option{
		sitecontent.WithStore(store),
		sitecontent.WithLogger(logger),
		sitecontent.WithSectionViews(c.SectionViews),
		sitecontent.WithInvalidateTimeout(c.InvalidateTimeout),
		sitecontent.WithHooks(sitecontent.LoggingHook(logger)),
	}

	if c.ViewCacheTTL > 0 {
		rt.Cache = viewcache.New(c.ViewCacheTTL)
		options = append(options, sitecontent.WithPageCache(rt.Cache))
	}

	if c.LogInvalidations {
		options = append(options, sitecontent.WithInvalidator(sitecontent.NewLoggingInvalidator(logger)))
	}

	if c.RedisAddress != "" {
		client, err := redisinv.NewClient(redisinv.Config{
			Address:  c.RedisAddress,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		options = append(options, sitecontent.WithInvalidator(redisinv.NewPublisher(client, c.RedisChannel, c.RedisStream)))
		if rt.Cache != nil {
			rt.Subscriber = redisinv.NewSubscriber(client, c.RedisChannel, rt.Cache, logger)
		}
	}

	if c.RevalidateURL != "" {
		hook, err := webhook.New(webhook.Config{
			URL:     c.RevalidateURL,
			Secret:  c.RevalidateSecret,
			Timeout: c.InvalidateTimeout,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		options = append(options, sitecontent.WithInvalidator(hook))
	}

	if reg != nil {
		rt.Metrics = sitecontent.NewMetrics(reg)
		options = append(options, sitecontent.WithHooks(rt.Metrics.Hooks()))
	}

	svc, err := sitecontent.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// BuildStore creates the configured Store. The returned func, when not nil,
// closes the store's connections.
func (c *ServerConfig) BuildStore(ctx context.Context) (sitecontent.Store, func(), error) {
	switch c.StorageType {
	case "memory":
		return memory.New(), nil, nil

	case "fs":
		store, err := fs.New(fs.Config{BaseDir: c.BaseDir})
		return store, nil, err

	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		store := pgstore.NewWithPool(pool, c.PostgresTable)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case "s3":
		store, err := s3store.New(s3store.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			Prefix:                 c.S3Prefix,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3PathStyle,
			CreateBucketIfNotExist: c.S3CreateBucket,
		})
		return store, nil, err

	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}

// LoadSeed reads SeedFile. It returns nil when no seed file is configured.
func (c *ServerConfig) LoadSeed() (sitecontent.Document, error) {
	if c.SeedFile == "" {
		return nil, nil
	}
	f, err := os.Open(c.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return sitecontent.DecodeDocument(f)
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pgstore.Ping(pingCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
