package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/scenario"
)

type Config struct {
	Env            string  `mapstructure:"ENV"`
	LogLevel       string  `mapstructure:"LOG_LEVEL"`
	DefinitionsDir string  `mapstructure:"DEFINITIONS_DIR"`
	DefaultAxis    string  `mapstructure:"DEFAULT_AXIS"`
	MinTotalBudget float64 `mapstructure:"MIN_TOTAL_BUDGET"`
	DatabaseURL    string  `mapstructure:"DATABASE_URL"`
	DBSchema       string  `mapstructure:"DB_SCHEMA"`
	DBMaxConns     int32   `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32   `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string  `mapstructure:"MIGRATIONS_DIR"`
}

var keys = []string{
	"ENV",
	"LOG_LEVEL",
	"DEFINITIONS_DIR",
	"DEFAULT_AXIS",
	"MIN_TOTAL_BUDGET",
	"DATABASE_URL",
	"DB_SCHEMA",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"MIGRATIONS_DIR",
}

// Load reads configuration from the environment and an optional .env file.
// Only the definitions and the database settings that are present are used;
// nothing is required.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEFAULT_AXIS", string(scenario.Balanced))
	v.SetDefault("MIN_TOTAL_BUDGET", scenario.DefaultMinTotalBudget)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)

	// Bind explicitly so Unmarshal sees env-only keys.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasDatabase reports whether a Postgres catalog is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Level parses LOG_LEVEL.
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.LogLevel)
}

// Axis returns DEFAULT_AXIS as a scenario axis.
func (c *Config) Axis() scenario.Axis {
	return scenario.Axis(c.DefaultAxis)
}

// Validate rejects unknown axes and log levels, a non-positive budget and
// inconsistent pool sizes.
func (c *Config) Validate() error {
	if _, err := scenario.ParseAxis(c.DefaultAxis); err != nil {
		return fmt.Errorf("DEFAULT_AXIS: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.MinTotalBudget <= 0 {
		return fmt.Errorf("MIN_TOTAL_BUDGET must be positive, got %v", c.MinTotalBudget)
	}
	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool size: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
