package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Provider ProviderConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type EngineConfig struct {
	Interval        time.Duration
	DefaultTimezone string
}

type ProviderConfig struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Provider: ProviderConfig{
			BaseURL:       mustEnv("PROVIDER_URL"),
			APIKey:        os.Getenv("PROVIDER_API_KEY"),
			RatePerSecond: getEnvFloat("PROVIDER_RATE_PER_SECOND", 0),
		},
		Engine: EngineConfig{
			Interval:        time.Duration(getEnvInt("ENGINE_INTERVAL_MS", 1000)) * time.Millisecond,
			DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

func validate(cfg *Config) {
	if cfg.Engine.Interval <= 0 {
		panic("ENGINE_INTERVAL_MS must be > 0")
	}
	if cfg.Provider.RatePerSecond < 0 {
		panic("PROVIDER_RATE_PER_SECOND must be >= 0")
	}
	if _, err := time.LoadLocation(cfg.Engine.DefaultTimezone); err != nil {
		panic(fmt.Sprintf("invalid DEFAULT_TIMEZONE: %s", cfg.Engine.DefaultTimezone))
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid float for env %s: %s", key, v))
	}
	return f
}
