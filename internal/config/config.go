package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Host        string
	Port        int
	Environment string
	// logging
	LogLevel    string `toml:"log_level"`
	LogsPath    string `toml:"logs_path"`
	LogToStdout bool   `toml:"log_to_stdout"`
	// sentry
	SentryEnabled bool `toml:"sentry_enabled"`
	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// prometheus metrics server
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// rate limiting
	LoginRateLimitAllowedPerMin int `toml:"login_rate_limit_allowed_per_min"`
	// progress photos storage
	PhotosRootPath string `toml:"photos_root_path"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func Load(env, path string) (*Config, error) {
	var tomlCfg Toml
	if _, err := toml.DecodeFile(path, &tomlCfg); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := tomlCfg.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env %s not found in %s", env, path)
	}

	return cfg, nil
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		if t.Development != nil {
			t.Development.Environment = "development"
		}
		return t.Development, nil
	case "prod", "production":
		if t.Production != nil {
			t.Production.Environment = "production"
		}
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}
