package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Audit     AuditConfig     `mapstructure:"audit"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Events    EventsConfig    `mapstructure:"events"`
	Selection SelectionConfig `mapstructure:"selection"`
	ReadOnly  bool            `mapstructure:"read_only"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type StoreConfig struct {
	// Dir holds the per-market JSON documents and the active pointer record.
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	AuditListKey string `mapstructure:"audit_list_key"`
	AuditListMax int    `mapstructure:"audit_list_max"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	RingMax int    `mapstructure:"ring_max"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type EventsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type SelectionConfig struct {
	// StatsWindow bounds the rolling outcome history kept per model.
	StatsWindow int `mapstructure:"stats_window"`
	// ReferenceTokens is the token profile cost_optimized ranks candidates
	// with (applied to input and output alike).
	ReferenceTokens int64 `mapstructure:"reference_tokens"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. TRADEGATE_STORE_DIR, TRADEGATE_REDIS_ADDR
	viper.SetEnvPrefix("tradegate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("store.dir", "./configs/markets")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("redis.audit_list_key", "tradegate:audit")
	viper.SetDefault("redis.audit_list_max", 10000)
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.dir", "./logs/audit")
	viper.SetDefault("audit.ring_max", 1000)
	viper.SetDefault("rate_limit.enabled", false)
	viper.SetDefault("rate_limit.rps", 50)
	viper.SetDefault("rate_limit.burst", 100)
	viper.SetDefault("events.enabled", true)
	viper.SetDefault("selection.stats_window", 50)
	viper.SetDefault("selection.reference_tokens", 1000)
	viper.SetDefault("read_only", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
