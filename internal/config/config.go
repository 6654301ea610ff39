package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	StoreDriver string        `envconfig:"STORE_DRIVER" default:"sqlite"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	SQLitePath  string        `envconfig:"SQLITE_PATH" default:"data/caisse.db"`
	DBMaxConns  int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBDebug     bool          `envconfig:"DB_DEBUG" default:"false"`
	RedisAddr   string        `envconfig:"REDIS_ADDR"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"30s"`
	LockWait    time.Duration `envconfig:"LOCK_WAIT" default:"10s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	StrictProductLookup bool `envconfig:"STRICT_PRODUCT_LOOKUP" default:"false"`
	RateLimitPerMinute  int  `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	CurrencyUnit          string `envconfig:"CURRENCY_UNIT" default:"dinar"`
	CurrencyUnitPlural    string `envconfig:"CURRENCY_UNIT_PLURAL" default:"dinars"`
	CurrencySubunit       string `envconfig:"CURRENCY_SUBUNIT" default:"centime"`
	CurrencySubunitPlural string `envconfig:"CURRENCY_SUBUNIT_PLURAL" default:"centimes"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %q", c.StoreDriver)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("invalid LOCK_TTL: %s", c.LockTTL)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %d", c.RateLimitPerMinute)
	}
	return nil
}
