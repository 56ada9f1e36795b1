package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fjod/go_cart/store-order/internal/cache"
	d "github.com/fjod/go_cart/store-order/internal/domain"
	"github.com/fjod/go_cart/store-order/internal/publisher"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"

	defaultActionsFile     = "./config/store-order.yaml"
	defaultHTTPPort        = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultMigrationsPath  = "./internal/repository/migrations"
	defaultMongoMaxPool    = 50
	defaultMongoTimeout    = 10 * time.Second
)

// Config is the runtime configuration of the order service.
type Config struct {
	LogLevel string
	HTTP     HTTPConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Orders   OrderConfig
	Actions  d.ActionTaxonomy
}

type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StorageConfig selects a backend with Driver; only that backend's fields
// are used.
type StorageConfig struct {
	Driver         string
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MigrationsPath string
	SQLitePath     string
	MongoURI       string
	MongoDatabase  string
	MongoPool      MongoPoolConfig
}

type MongoPoolConfig struct {
	MaxSize        int
	MinSize        int
	MaxIdleTime    time.Duration
	ConnectTimeout time.Duration
}

// RedisConfig leaves caching off when Addr is empty.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	MaxJitter time.Duration
}

// KafkaConfig leaves event publishing off when Brokers is empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type OrderConfig struct {
	IDLength int
	Currency string
}

type Option func(*loaderOptions)

type loaderOptions struct {
	envMap       map[string]string
	useSystemEnv bool
	actionsFile  string
}

// WithEnvMap injects explicit values. They take precedence over the process
// environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithActionsFile reads the action taxonomy from path instead of ACTIONS_FILE.
func WithActionsFile(path string) Option {
	return func(o *loaderOptions) {
		o.actionsFile = path
	}
}

type actionsDocument struct {
	Actions *d.ActionTaxonomy `yaml:"actions"`
}

// Load reads configuration from the environment and the action taxonomy from
// YAML. A missing taxonomy file at the default location falls back to
// domain.DefaultActionTaxonomy; a missing file that was asked for by name is
// an error.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			return os.LookupEnv(key)
		}
		return "", false
	}

	cfg := Config{
		LogLevel: stringWithDefault(lookup, "LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port:            stringWithDefault(lookup, "HTTP_PORT", defaultHTTPPort),
			ReadTimeout:     durationWithDefault(lookup, "HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "HTTP_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(stringWithDefault(lookup, "STORAGE_DRIVER", DriverPostgres)),
			Host:           stringWithDefault(lookup, "DB_HOST", "localhost"),
			Port:           intWithDefault(lookup, "DB_PORT", 5432),
			User:           stringWithDefault(lookup, "DB_USER", "postgres"),
			Password:       stringWithDefault(lookup, "DB_PASSWORD", "postgres"),
			DBName:         stringWithDefault(lookup, "DB_NAME", "ecommerce"),
			MigrationsPath: stringWithDefault(lookup, "MIGRATIONS_PATH", defaultMigrationsPath),
			SQLitePath:     stringWithDefault(lookup, "SQLITE_PATH", "./store-order.db"),
			MongoURI:       stringWithDefault(lookup, "MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:  stringWithDefault(lookup, "MONGO_DATABASE", "store_order"),
			MongoPool: MongoPoolConfig{
				MaxSize:        intWithDefault(lookup, "MONGO_MAX_POOL_SIZE", defaultMongoMaxPool),
				MinSize:        intWithDefault(lookup, "MONGO_MIN_POOL_SIZE", 0),
				MaxIdleTime:    durationWithDefault(lookup, "MONGO_MAX_CONN_IDLE_TIME", 0),
				ConnectTimeout: durationWithDefault(lookup, "MONGO_CONNECT_TIMEOUT", defaultMongoTimeout),
			},
		},
		Redis: RedisConfig{
			Addr:      stringWithDefault(lookup, "REDIS_ADDR", ""),
			Password:  stringWithDefault(lookup, "REDIS_PASSWORD", ""),
			DB:        intWithDefault(lookup, "REDIS_DB", 0),
			TTL:       durationWithDefault(lookup, "CACHE_TTL", cache.DefaultTTL),
			MaxJitter: durationWithDefault(lookup, "CACHE_TTL_JITTER", cache.DefaultMaxJitter),
		},
		Kafka: KafkaConfig{
			Brokers: csvWithDefault(lookup, "KAFKA_BROKERS"),
			Topic:   stringWithDefault(lookup, "KAFKA_TOPIC", publisher.DefaultTopic),
		},
		Orders: OrderConfig{
			IDLength: intWithDefault(lookup, "ORDER_ID_LENGTH", d.DefaultOrderIDLength),
			Currency: strings.ToUpper(stringWithDefault(lookup, "ORDER_CURRENCY", d.DefaultCurrency)),
		},
	}

	switch cfg.Storage.Driver {
	case DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return Config{}, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	if p := cfg.Storage.MongoPool; p.MaxSize < 0 || p.MinSize < 0 || (p.MaxSize > 0 && p.MinSize > p.MaxSize) {
		return Config{}, fmt.Errorf("invalid mongo pool size: min %d, max %d", p.MinSize, p.MaxSize)
	}
	if cfg.Orders.IDLength <= 0 {
		return Config{}, fmt.Errorf("ORDER_ID_LENGTH must be positive, got %d", cfg.Orders.IDLength)
	}

	path, explicit := options.actionsFile, options.actionsFile != ""
	if !explicit {
		if value, ok := lookup("ACTIONS_FILE"); ok && value != "" {
			path, explicit = value, true
		} else {
			path = defaultActionsFile
		}
	}

	actions, err := loadActions(path, explicit)
	if err != nil {
		return Config{}, err
	}
	cfg.Actions = actions

	return cfg, nil
}

func loadActions(path string, required bool) (d.ActionTaxonomy, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return d.DefaultActionTaxonomy(), nil
	}
	if err != nil {
		return d.ActionTaxonomy{}, fmt.Errorf("read actions file: %w", err)
	}

	var doc actionsDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return d.ActionTaxonomy{}, fmt.Errorf("parse actions file %s: %w", path, err)
	}
	if doc.Actions == nil {
		return d.DefaultActionTaxonomy(), nil
	}

	if err := doc.Actions.Validate(); err != nil {
		return d.ActionTaxonomy{}, fmt.Errorf("actions file %s: %w", path, err)
	}
	return *doc.Actions, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
