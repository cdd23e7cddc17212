package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDocumentKey sets the document served by the HTTP API
func WithDocumentKey(key string) Option {
	return func(c *ServerConfig) error {
		if key == "" {
			return fmt.Errorf("document key cannot be empty")
		}
		c.DocumentKey = key
		return nil
	}
}

// WithSeedFile seeds the document from path when nothing is stored yet
func WithSeedFile(path string) Option {
	return func(c *ServerConfig) error {
		c.SeedFile = path
		return nil
	}
}

// WithMemoryStorage keeps the document in memory (for testing)
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores documents as JSON files under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.BaseDir = baseDir
		return nil
	}
}

// WithPostgresStorage stores documents in a Postgres JSONB table. An empty
// table keeps the default.
func WithPostgresStorage(databaseURL, schema, table string) Option {
	return func(c *ServerConfig) error {
		if databaseURL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.StorageType = "postgres"
		c.DatabaseURL = databaseURL
		c.DBSchema = schema
		if table != "" {
			c.PostgresTable = table
		}
		return nil
	}
}

// WithS3Storage stores documents as objects in bucket
func WithS3Storage(bucket, region, prefix string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1" // Default region
		}
		c.StorageType = "s3"
		c.S3Bucket = bucket
		c.S3Region = region
		c.S3Prefix = prefix
		return nil
	}
}

// WithS3Credentials sets AWS credentials for S3 storage
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.S3AccessKeyID = accessKeyID
		c.S3SecretKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle, createBucket bool) Option {
	return func(c *ServerConfig) error {
		c.S3Endpoint = endpoint
		c.S3PathStyle = usePathStyle
		c.S3CreateBucket = createBucket
		return nil
	}
}

// WithRedis publishes invalidation events through Redis
func WithRedis(address, password string, db int, channel string) Option {
	return func(c *ServerConfig) error {
		if address == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		c.RedisAddress = address
		c.RedisPassword = password
		c.RedisDB = db
		if channel != "" {
			c.RedisChannel = channel
		}
		return nil
	}
}

// WithRevalidateWebhook posts invalidation events to url
func WithRevalidateWebhook(url, secret string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("revalidate URL cannot be empty")
		}
		c.RevalidateURL = url
		c.RevalidateSecret = secret
		return nil
	}
}

// WithSectionViews controls whether section-derived views are invalidated
// in addition to the fixed views
func WithSectionViews(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.SectionViews = enabled
		return nil
	}
}

// WithInvalidateTimeout bounds each invalidation dispatch
func WithInvalidateTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("invalidate timeout must be positive, got: %s", d)
		}
		c.InvalidateTimeout = d
		return nil
	}
}

// WithViewCacheTTL sets the page view cache TTL; zero disables the cache
func WithViewCacheTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl < 0 {
			return fmt.Errorf("view cache TTL cannot be negative, got: %s", ttl)
		}
		c.ViewCacheTTL = ttl
		return nil
	}
}

// WithJWTSecret protects write routes with HS256 bearer tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithAllowedOrigins sets the CORS origins, used as given
func WithAllowedOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.AllowedOrigins = origins
		return nil
	}
}

// WithMaxBodyBytes limits request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max body bytes must be positive, got: %d", n)
		}
		c.MaxBodyBytes = n
		return nil
	}
}

// WithInvalidationLogging enables or disables the logging invalidator
func WithInvalidationLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.LogInvalidations = enabled
		return nil
	}
}

// WithDefaults resets the configuration to the library defaults
func WithDefaults() Option {
	return func(c *ServerConfig) error {
		*c = defaults()
		return nil
	}
}
