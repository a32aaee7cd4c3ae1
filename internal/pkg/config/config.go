package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store drivers selectable with STORE_DRIVER.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	PanelName string `env:"PANEL_NAME, default=Skyport Panel"`

	// SaltRounds is the bcrypt cost factor.
	SaltRounds int `env:"SALT_ROUNDS, default=10"`

	// MetricsTextfile, when set, receives the run's metrics on exit.
	MetricsTextfile string `env:"METRICS_TEXTFILE"`

	Store  StoreConfig
	SQLite SQLiteConfig
	Mongo  MongoConfig
	Redis  RedisConfig
}

type StoreConfig struct {
	Driver   string        `env:"STORE_DRIVER,  default=sqlite"`
	UsersKey string        `env:"USERS_KEY,     default=users"`
	Timeout  time.Duration `env:"STORE_TIMEOUT, default=5s"`
}

type SQLiteConfig struct {
	Path      string `env:"SQLITE_PATH,      default=skyport.db"`
	Namespace string `env:"SQLITE_NAMESPACE, default=keyv"`
}

type MongoConfig struct {
	URI        string `env:"MONGO_URI,        default=mongodb://localhost:27017"`
	Database   string `env:"MONGO_DB,         default=skyport"`
	Collection string `env:"MONGO_COLLECTION, default=kv"`
}

type RedisConfig struct {
	Addr   string `env:"REDIS_ADDR,   default=localhost:6379"`
	DB     int    `env:"REDIS_DB,     default=0"`
	Prefix string `env:"REDIS_PREFIX"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverRedis, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.SaltRounds < 0 {
		return fmt.Errorf("SALT_ROUNDS must not be negative, got %d", c.SaltRounds)
	}
	if c.Store.UsersKey == "" {
		return fmt.Errorf("USERS_KEY must not be empty")
	}
	return nil
}
