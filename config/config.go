package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Stats      StatsConfig      `mapstructure:"stats"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the queue store backend. The memory driver keeps
// everything in process and needs no external services.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, postgres
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// MatchingConfig carries the scoring weights and thresholds. Amount
// thresholds are in currency units.
type MatchingConfig struct {
	PaymentTypeBonus     int           `mapstructure:"payment_type_bonus"`
	ProximityTightBonus  int           `mapstructure:"proximity_tight_bonus"`
	ProximityMediumBonus int           `mapstructure:"proximity_medium_bonus"`
	ProximityWideBonus   int           `mapstructure:"proximity_wide_bonus"`
	ProximityTight       int64         `mapstructure:"proximity_tight"`
	ProximityMedium      int64         `mapstructure:"proximity_medium"`
	ProximityWide        int64         `mapstructure:"proximity_wide"`
	DirectionBonus       int           `mapstructure:"direction_bonus"`
	AgeBonusStep         int           `mapstructure:"age_bonus_step"`
	AgeBonusInterval     time.Duration `mapstructure:"age_bonus_interval"`
	AgeBonusCap          int           `mapstructure:"age_bonus_cap"`
}

type DispatcherConfig struct {
	BufferSize      int           `mapstructure:"buffer_size"`
	Workers         int           `mapstructure:"workers"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

// NotifyConfig selects the outbound notification channel.
type NotifyConfig struct {
	Channel       string        `mapstructure:"channel"` // none, webhook, telegram
	WebhookURL    string        `mapstructure:"webhook_url"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	TelegramToken string        `mapstructure:"telegram_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PME_ (P2P Match Engine).
// Nested keys use underscore: PME_DATABASE_HOST, PME_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "match_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "p2p-match-engine")
	v.SetDefault("matching.payment_type_bonus", 20)
	v.SetDefault("matching.proximity_tight_bonus", 30)
	v.SetDefault("matching.proximity_medium_bonus", 20)
	v.SetDefault("matching.proximity_wide_bonus", 10)
	v.SetDefault("matching.proximity_tight", 10)
	v.SetDefault("matching.proximity_medium", 50)
	v.SetDefault("matching.proximity_wide", 100)
	v.SetDefault("matching.direction_bonus", 25)
	v.SetDefault("matching.age_bonus_step", 1)
	v.SetDefault("matching.age_bonus_interval", "5m")
	v.SetDefault("matching.age_bonus_cap", 15)
	v.SetDefault("dispatcher.buffer_size", 256)
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.delivery_timeout", "10s")
	v.SetDefault("notify.channel", "none")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_secret", "")
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("stats.cache_ttl", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PME_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
