package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the storefront bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot"`
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Shop      ShopConfig      `mapstructure:"shop"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// BotConfig describes the Telegram connection and the admin allow-list.
type BotConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Mode          string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout       time.Duration `mapstructure:"timeout"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	WebhookListen string        `mapstructure:"webhook_listen"`
	Admins        []int64       `mapstructure:"admins" validate:"min=1,dive,gt=0"`
}

// IsAdmin reports whether userID belongs to the configured allow-list.
func (c BotConfig) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	DSN        string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// MongoConfig points at the account store.
type MongoConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URI      string        `mapstructure:"uri" validate:"required_if=Enabled true"`
	Database string        `mapstructure:"database" validate:"required_if=Enabled true"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PostgresConfig points at the order ledger.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required_if=Enabled true"`
	SSLMode  string `mapstructure:"ssl_mode"`

	MaxOpenConns int `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// DSN returns PostgreSQL DSN based on config values.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gte=0"`
	Window string `mapstructure:"window"`
}

type RateLimitConfig struct {
	Enabled   bool                     `mapstructure:"enabled"`
	Whitelist []int64                  `mapstructure:"whitelist"`
	PerUser   RateLimitRule            `mapstructure:"per_user"`
	Global    RateLimitRule            `mapstructure:"global"`
	Commands  map[string]RateLimitRule `mapstructure:"commands"`
}

// OfferConfig is a single priced catalog entry.
type OfferConfig struct {
	Category string `mapstructure:"category" validate:"oneof=currency premium stars"`
	Group    string `mapstructure:"group" validate:"max=24"`
	Key      string `mapstructure:"key" validate:"required,max=40"`
	Label    string `mapstructure:"label" validate:"required"`
	Price    int64  `mapstructure:"price" validate:"gt=0"`
}

// ShopConfig carries storefront inputs that the core treats as immutable.
type ShopConfig struct {
	CurrencySign   string        `mapstructure:"currency_sign"`
	PaymentDetails string        `mapstructure:"payment_details"`
	TopUpMin       int64         `mapstructure:"topup_min" validate:"gt=0"`
	TopUpMax       int64         `mapstructure:"topup_max" validate:"gtfield=TopUpMin"`
	ReferralBonus  int64         `mapstructure:"referral_bonus" validate:"gte=0"`
	Offers         []OfferConfig `mapstructure:"offers" validate:"dive"`
}

type EngineConfig struct {
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	LockWait         time.Duration `mapstructure:"lock_wait"`
}

type NotifyConfig struct {
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	Retries     int           `mapstructure:"retries" validate:"gte=0,lte=5"`
}

type JobsConfig struct {
	ReminderSchedule string        `mapstructure:"reminder_schedule"`
	ReminderAfter    time.Duration `mapstructure:"reminder_after"`
	StateTTL         time.Duration `mapstructure:"state_ttl"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	// WorkerConcurrency bounds the asynq worker when Redis is enabled.
	WorkerConcurrency int `mapstructure:"worker_concurrency" validate:"gte=0"`
}
