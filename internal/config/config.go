package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// MLLP listener for interface engines that push messages over TCP.
	MLLPEnabled bool   `mapstructure:"MLLP_ENABLED"`
	MLLPAddr    string `mapstructure:"MLLP_ADDR"`

	// Queue processing.
	ProcessInterval time.Duration `mapstructure:"PROCESS_INTERVAL"`
	HL7Source       string        `mapstructure:"HL7_SOURCE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MLLP_ENABLED", false)
	v.SetDefault("MLLP_ADDR", ":2575")
	v.SetDefault("PROCESS_INTERVAL", "30s")
	v.SetDefault("HL7_SOURCE", "LOCAL")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MLLP_ENABLED")
	v.BindEnv("MLLP_ADDR")
	v.BindEnv("PROCESS_INTERVAL")
	v.BindEnv("HL7_SOURCE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.ProcessInterval < time.Second {
		return fmt.Errorf("PROCESS_INTERVAL must be at least 1s, got %s", c.ProcessInterval)
	}
	if c.MLLPEnabled && c.MLLPAddr == "" {
		return fmt.Errorf("MLLP_ADDR is required when MLLP_ENABLED is true")
	}
	return nil
}
