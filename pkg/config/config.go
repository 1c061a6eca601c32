// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Snapshot, ObjectStore, Redis, Kafka, Postgres, Search, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot source kinds.
const (
	SourceFile   = "file"
	SourceObject = "object"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Snapshot    SnapshotConfig    `yaml:"snapshot"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Search      SearchConfig      `yaml:"search"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	RateLimit   RateLimitConfig   `yaml:"rateLimit"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

// SnapshotConfig says where the term index snapshot is read from and how
// hard to try before giving up on a load.
type SnapshotConfig struct {
	Source        string        `yaml:"source"`
	Path          string        `yaml:"path"`
	ObjectKey     string        `yaml:"objectKey"`
	LoadTimeout   time.Duration `yaml:"loadTimeout"`
	RetryAttempts int           `yaml:"retryAttempts"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
}

// ObjectStoreConfig holds S3-compatible object storage parameters.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents   string `yaml:"analyticsEvents"`
	SnapshotPublished string `yaml:"snapshotPublished"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls result limits.
type SearchConfig struct {
	MaxResults   int `yaml:"maxResults"`
	DefaultLimit int `yaml:"defaultLimit"`
}

// AnalyticsConfig controls lookup event collection and persistence.
type AnalyticsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	BufferSize      int           `yaml:"bufferSize"`
	PersistInterval time.Duration `yaml:"persistInterval"`
}

// RateLimitConfig bounds requests per client address.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Snapshot.Source {
	case SourceFile:
		if c.Snapshot.Path == "" {
			errs = append(errs, errors.New("snapshot.path is required for file source"))
		}
	case SourceObject:
		if c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "" {
			errs = append(errs, errors.New("objectStore.endpoint and objectStore.bucket are required for object source"))
		}
		if c.Snapshot.ObjectKey == "" {
			errs = append(errs, errors.New("snapshot.objectKey is required for object source"))
		}
	default:
		errs = append(errs, fmt.Errorf("snapshot.source must be %q or %q, got %q", SourceFile, SourceObject, c.Snapshot.Source))
	}
	if c.Search.DefaultLimit < 1 {
		errs = append(errs, errors.New("search.defaultLimit must be positive"))
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, errors.New("search.maxResults must be >= search.defaultLimit"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rateLimit.requests and rateLimit.window must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Snapshot: SnapshotConfig{
			Source:        SourceFile,
			Path:          "data/searchindex.js",
			LoadTimeout:   30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "localhost:9000",
			Bucket:   "docs",
			Region:   "us-east-1",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docsearch-group",
			Topics: KafkaTopics{
				AnalyticsEvents:   "docsearch.analytics",
				SnapshotPublished: "docsearch.snapshot-published",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit: 20,
		},
		Analytics: AnalyticsConfig{
			Enabled:         true,
			BufferSize:      10000,
			PersistInterval: time.Minute,
		},
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads DOCSEARCH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCSEARCH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOCSEARCH_SNAPSHOT_SOURCE"); v != "" {
		cfg.Snapshot.Source = v
	}
	if v := os.Getenv("DOCSEARCH_SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("DOCSEARCH_SNAPSHOT_OBJECT_KEY"); v != "" {
		cfg.Snapshot.ObjectKey = v
	}
	if v := os.Getenv("DOCSEARCH_OBJECTSTORE_ENDPOINT"); v != "" {
		cfg.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("DOCSEARCH_OBJECTSTORE_BUCKET"); v != "" {
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("DOCSEARCH_OBJECTSTORE_ACCESS_KEY"); v != "" {
		cfg.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("DOCSEARCH_OBJECTSTORE_SECRET_KEY"); v != "" {
		cfg.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("DOCSEARCH_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("DOCSEARCH_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DOCSEARCH_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DOCSEARCH_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DOCSEARCH_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("DOCSEARCH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DOCSEARCH_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("DOCSEARCH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DOCSEARCH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DOCSEARCH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DOCSEARCH_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
