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

// Config is the application-wide configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mail      MailConfig      `mapstructure:"mail"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP server settings.
type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	BaseURL     string     `mapstructure:"base_url"`
	BodyLimitMB int        `mapstructure:"body_limit_mb"`
	CORS        CORSConfig `mapstructure:"cors"`
}

// CORSConfig cross-origin settings.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL settings.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN builds the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT settings.
type AuthConfig struct {
	JWTSecret               string        `mapstructure:"jwt_secret"`
	AccessTokenTTL          time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTLDefault  time.Duration `mapstructure:"refresh_token_ttl_default"`
	RefreshTokenTTLRemember time.Duration `mapstructure:"refresh_token_ttl_remember_me"`
}

// MailConfig SendGrid settings. An empty key disables email delivery.
type MailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	From           string `mapstructure:"from"`
	AppName        string `mapstructure:"app_name"`
}

// Enabled reports whether outgoing email is configured.
func (c *MailConfig) Enabled() bool { return c.SendGridAPIKey != "" && c.From != "" }

// LogConfig logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig file storage settings for CVs and report files.
type StorageConfig struct {
	Driver        string `mapstructure:"driver"` // local | oss
	LocalDir      string `mapstructure:"local_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb"`

	OSSEndpoint        string `mapstructure:"oss_endpoint"`
	OSSAccessKeyID     string `mapstructure:"oss_access_key_id"`
	OSSAccessKeySecret string `mapstructure:"oss_access_key_secret"`
	OSSBucket          string `mapstructure:"oss_bucket"`
	OSSPrefix          string `mapstructure:"oss_prefix"`
}

// MatcherConfig AI match-scoring endpoint. An empty key disables scoring.
type MatcherConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WorkflowConfig switches for the behaviours left open by the business rules.
type WorkflowConfig struct {
	ReleaseSlotOnReject bool          `mapstructure:"release_slot_on_reject"`
	GradeRequiresFinal  bool          `mapstructure:"grade_requires_final"`
	SoutenanceDuration  time.Duration `mapstructure:"soutenance_duration"`
}

// JobsConfig background job schedules (robfig/cron spec strings).
type JobsConfig struct {
	SoutenanceDoneCron string `mapstructure:"soutenance_done_cron"`
	InactiveUsersCron  string `mapstructure:"inactive_users_cron"`
	// InactiveAfter disables accounts without a login for this long. Zero
	// turns the job off.
	InactiveAfter time.Duration `mapstructure:"inactive_after"`
}

// RateLimitConfig limits for the unauthenticated auth routes.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Load reads configuration from file and environment.
// Priority: environment > config file > defaults. A .env file next to the
// binary is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.body_limit_mb", 20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "pfe_management")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Africa/Tunis")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "30m")
	v.SetDefault("auth.refresh_token_ttl_default", "24h")
	v.SetDefault("auth.refresh_token_ttl_remember_me", "168h")

	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.app_name", "PFE Management")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "./media")
	v.SetDefault("storage.public_base_url", "http://localhost:8000/media")
	v.SetDefault("storage.max_upload_mb", 10)
	v.SetDefault("storage.oss_endpoint", "")
	v.SetDefault("storage.oss_access_key_id", "")
	v.SetDefault("storage.oss_access_key_secret", "")
	v.SetDefault("storage.oss_bucket", "")
	v.SetDefault("storage.oss_prefix", "pfe/")

	v.SetDefault("matcher.endpoint", "https://api.groq.com/openai/v1/chat/completions")
	v.SetDefault("matcher.api_key", "")
	v.SetDefault("matcher.model", "llama-3.1-8b-instant")
	v.SetDefault("matcher.timeout", "30s")

	v.SetDefault("workflow.release_slot_on_reject", false)
	v.SetDefault("workflow.grade_requires_final", true)
	v.SetDefault("workflow.soutenance_duration", "60m")

	v.SetDefault("jobs.soutenance_done_cron", "@hourly")
	v.SetDefault("jobs.inactive_users_cron", "@daily")
	v.SetDefault("jobs.inactive_after", "4320h")

	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.window", "1m")
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("invalid config: auth.jwt_secret must be set")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("invalid config: auth.jwt_secret must be at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be within 1-65535")
	}
	switch c.Storage.Driver {
	case "local", "oss":
	default:
		return fmt.Errorf("invalid config: storage.driver %q is not one of local, oss", c.Storage.Driver)
	}
	if c.Workflow.SoutenanceDuration <= 0 {
		return fmt.Errorf("invalid config: workflow.soutenance_duration must be positive")
	}
	return nil
}
