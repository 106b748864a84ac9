package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	Parser    ParserConfig    `mapstructure:"parser"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Forward   ForwardConfig   `mapstructure:"forward"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
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

// QueueConfig configures the downstream business queue.
type QueueConfig struct {
	Name string `mapstructure:"name"`
}

// IntakeConfig bounds what the webhook endpoint accepts before a record exists.
type IntakeConfig struct {
	// MaxBodyBytes is the hard ceiling on stored raw bodies. Calls over the
	// limit are rejected with 413 and never persisted.
	MaxBodyBytes int `mapstructure:"max_body_bytes"`
}

// ParserConfig bounds the safe parser against hostile payloads.
type ParserConfig struct {
	MaxParams        int `mapstructure:"max_params"`        // top-level form keys
	MaxKeyLen        int `mapstructure:"max_key_len"`       // longer keys are dropped
	MaxValueLen      int `mapstructure:"max_value_len"`     // longer plain values are dropped
	MaxEmbeddedJSON  int `mapstructure:"max_embedded_json"` // byte limit for embedded JSON values
	MaxFormJSONDepth int `mapstructure:"max_form_json_depth"`
	MaxJSONDepth     int `mapstructure:"max_json_depth"` // top-level JSON bodies
	MaxObjectKeys    int `mapstructure:"max_object_keys"`
	MaxArrayItems    int `mapstructure:"max_array_items"`
}

// WorkerConfig configures the task dispatcher pool.
type WorkerConfig struct {
	Count      int           `mapstructure:"count"`
	QueueSize  int           `mapstructure:"queue_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// ForwardConfig configures queue-forwarding retry, independent of parse retry.
type ForwardConfig struct {
	Attempts     int           `mapstructure:"attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type SchedulerConfig struct {
	PendingSweepEvery time.Duration `mapstructure:"pending_sweep_every"`
	PendingAge        time.Duration `mapstructure:"pending_age"`
	PendingBatch      int           `mapstructure:"pending_batch"`
	FailedRetryEvery  time.Duration `mapstructure:"failed_retry_every"`
	CleanupEvery      time.Duration `mapstructure:"cleanup_every"`
	Retention         time.Duration `mapstructure:"retention"`
}

// ExtractConfig holds ordered candidate key lists for envelope hint fields.
// Each logical attribute resolves to the first key present in its list.
type ExtractConfig struct {
	AccountKeys   []string `mapstructure:"account_keys"`
	ReferenceKeys []string `mapstructure:"reference_keys"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// AuthConfig holds the internal-API operator credentials.
// PasswordHash is an Argon2id encoded hash.
type AuthConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WHR_ (Webhook Relay).
// Nested keys use underscore: WHR_DATABASE_HOST, WHR_QUEUE_NAME, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "webhook_relay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.name", "webhook_queue")
	v.SetDefault("intake.max_body_bytes", 10000)
	v.SetDefault("parser.max_params", 50)
	v.SetDefault("parser.max_key_len", 100)
	v.SetDefault("parser.max_value_len", 1000)
	v.SetDefault("parser.max_embedded_json", 4096)
	v.SetDefault("parser.max_form_json_depth", 5)
	v.SetDefault("parser.max_json_depth", 10)
	v.SetDefault("parser.max_object_keys", 100)
	v.SetDefault("parser.max_array_items", 1000)
	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.queue_size", 1024)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.retry_delay", "60s")
	v.SetDefault("forward.attempts", 3)
	v.SetDefault("forward.initial_delay", "1s")
	v.SetDefault("forward.max_delay", "10s")
	v.SetDefault("scheduler.pending_sweep_every", "5m")
	v.SetDefault("scheduler.pending_age", "10m")
	v.SetDefault("scheduler.pending_batch", 100)
	v.SetDefault("scheduler.failed_retry_every", "15m")
	v.SetDefault("scheduler.cleanup_every", "24h")
	v.SetDefault("scheduler.retention", "720h") // 30 days
	v.SetDefault("extract.account_keys", []string{"customerId", "guest_id", "guestId", "customer_id"})
	v.SetDefault("extract.reference_keys", []string{"organizationId", "venue_id", "venueId", "organization_id"})
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "webhook-relay")
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password_hash", "")
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

	// Environment variables: WHR_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WHR")
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
