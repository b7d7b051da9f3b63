package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Mail     MailConfig     `mapstructure:"mail"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
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
	// LockTimeout bounds how long a ledger transaction waits on a row lock.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
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
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// WebhooksConfig carries the per-provider shared secrets and credentials.
type WebhooksConfig struct {
	Paystack PaystackConfig `mapstructure:"paystack"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	PayPal   PayPalConfig   `mapstructure:"paypal"`
	// EventTTL bounds how long a delivered event id is remembered.
	EventTTL time.Duration `mapstructure:"event_ttl"`
}

type PaystackConfig struct {
	Secret string `mapstructure:"secret"`
}

type StripeConfig struct {
	Secret    string        `mapstructure:"secret"`
	Tolerance time.Duration `mapstructure:"tolerance"`
}

type PayPalConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	WebhookID    string        `mapstructure:"webhook_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type PayoutConfig struct {
	Schedule         string        `mapstructure:"schedule"` // cron expression
	ActorType        string        `mapstructure:"actor_type"`
	Currency         string        `mapstructure:"currency"`
	ThresholdKey     string        `mapstructure:"threshold_key"`
	DefaultThreshold int64         `mapstructure:"default_threshold"` // minor units, 0 disables
	Concurrency      int           `mapstructure:"concurrency"`
	RunTimeout       time.Duration `mapstructure:"run_timeout"`
}

type SyncConfig struct {
	Queue        string        `mapstructure:"queue"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type MailConfig struct {
	SendGridKey string `mapstructure:"sendgrid_key"`
	FromEmail   string `mapstructure:"from_email"`
	FromName    string `mapstructure:"from_name"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: TL_ (Tutor Ledger).
// Nested keys use underscore: TL_DATABASE_HOST, TL_WEBHOOKS_STRIPE_SECRET, etc.
// A .env file in the working directory, if present, is loaded into the
// process environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "tutor_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "tutor-ledger")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("webhooks.paystack.secret", "")
	v.SetDefault("webhooks.stripe.secret", "")
	v.SetDefault("webhooks.stripe.tolerance", "300s")
	v.SetDefault("webhooks.paypal.base_url", "https://api-m.paypal.com")
	v.SetDefault("webhooks.paypal.client_id", "")
	v.SetDefault("webhooks.paypal.client_secret", "")
	v.SetDefault("webhooks.paypal.webhook_id", "")
	v.SetDefault("webhooks.paypal.timeout", "8s")
	v.SetDefault("webhooks.event_ttl", "72h")
	v.SetDefault("payout.schedule", "0 2 * * *")
	v.SetDefault("payout.actor_type", "teacher")
	v.SetDefault("payout.currency", "USD")
	v.SetDefault("payout.threshold_key", "auto_payout_threshold")
	v.SetDefault("payout.default_threshold", 0)
	v.SetDefault("payout.concurrency", 4)
	v.SetDefault("payout.run_timeout", "10m")
	v.SetDefault("sync.queue", "ledger:sync")
	v.SetDefault("sync.max_attempts", 5)
	v.SetDefault("sync.poll_interval", "2s")
	v.SetDefault("mail.sendgrid_key", "")
	v.SetDefault("mail.from_email", "no-reply@tutor-ledger.local")
	v.SetDefault("mail.from_name", "Tutor Ledger")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: TL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("TL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
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
