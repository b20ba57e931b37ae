package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Event      EventConfig      `mapstructure:"event"`
	Redemption RedemptionConfig `mapstructure:"redemption"`
	Business   BusinessConfig   `mapstructure:"business"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	// snowflake node id, unique per instance
	WorkerID        int64         `mapstructure:"worker_id"`
}

// DatabaseConfig selects the gorm dialector. DSN, when set, wins over the
// individual connection fields.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql | postgres | sqlite
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Redemption string `mapstructure:"redemption"`
}

type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	DefaultPassword    string        `mapstructure:"default_password"`
	SuperAdminEmail    string        `mapstructure:"superadmin_email"`
	SuperAdminPassword string        `mapstructure:"superadmin_password"`
}

// EventConfig holds the per-deployment constants of the single event.
type EventConfig struct {
	Name                string        `mapstructure:"name"`
	TokenAllocation     int64         `mapstructure:"token_allocation"`
	ShortCodeLength     int           `mapstructure:"short_code_length"`
	RegistrationBaseURL string        `mapstructure:"registration_base_url"`
	CodeValidity        time.Duration `mapstructure:"code_validity"`
}

type RedemptionConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type BusinessConfig struct {
	MaxRetryCount      int           `mapstructure:"max_retry_count"`
	OutboxInterval     time.Duration `mapstructure:"outbox_interval"`
	CodeExpiryInterval time.Duration `mapstructure:"code_expiry_interval"`
	AuditInterval      time.Duration `mapstructure:"audit_interval"`
}

type ReportConfig struct {
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
	S3       S3Config      `mapstructure:"s3"`
}

type S3Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	Prefix          string        `mapstructure:"prefix"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "gomonate")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic.redemption", "gomonate.redemption")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.superadmin_email", "")
	v.SetDefault("auth.superadmin_password", "")
	v.SetDefault("auth.default_password", "changeme")

	v.SetDefault("event.name", "GoMonate")
	v.SetDefault("event.token_allocation", 18)
	v.SetDefault("event.short_code_length", 6)
	v.SetDefault("event.registration_base_url", "https://gomonate.app/register")

	v.SetDefault("redemption.max_attempts", 3)
	v.SetDefault("redemption.retry_backoff", 20*time.Millisecond)

	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.outbox_interval", 200*time.Millisecond)
	v.SetDefault("business.code_expiry_interval", time.Minute)
	v.SetDefault("business.audit_interval", 5*time.Minute)

	v.SetDefault("report.stats_ttl", 30*time.Second)
	v.SetDefault("report.s3.prefix", "reports")
	v.SetDefault("report.s3.presign_ttl", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads the YAML file at configPath (optional) into a Config.
//
// A missing .env is fine. GOMONATE_* environment variables override the file,
// e.g. GOMONATE_DATABASE_DSN or GOMONATE_AUTH_JWT_SECRET.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GOMONATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required")
	}
	if c.Event.TokenAllocation <= 0 {
		return fmt.Errorf("config: event.token_allocation must be positive, got %d", c.Event.TokenAllocation)
	}
	if c.Event.ShortCodeLength < 4 {
		return fmt.Errorf("config: event.short_code_length must be at least 4, got %d", c.Event.ShortCodeLength)
	}
	if c.Redemption.MaxAttempts < 1 {
		return fmt.Errorf("config: redemption.max_attempts must be at least 1")
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.Report.S3.Enabled && c.Report.S3.Bucket == "" {
		return fmt.Errorf("config: report.s3.bucket is required when report.s3.enabled")
	}
	return nil
}
