package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed by the service.
	EnvPrefix = "QUIZLAB"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Webhook     WebhookConfig
	Credentials CredentialsConfig
	RateLimit   RateLimitConfig
	Mailer      MailerConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Public      PublicConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// The distributed rate-limit backend is mandatory in production; the
	// in-process fallback is only acceptable for local development.
	if c.App.IsProd() && strings.TrimSpace(c.Redis.URL) == "" && strings.TrimSpace(c.Redis.Address) == "" {
		return fmt.Errorf("redis connection config is required in production")
	}
	if c.App.IsProd() && c.Webhook.SkipVerify {
		return fmt.Errorf("webhook signature bypass is not allowed in production")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"QUIZLAB_APP_ENV" required:"true"`
	Port         string `envconfig:"QUIZLAB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QUIZLAB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QUIZLAB_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"QUIZLAB_APP_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"QUIZLAB_DB_DSN"`
	Driver string `envconfig:"QUIZLAB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QUIZLAB_DB_HOST"`
	LegacyPort     int    `envconfig:"QUIZLAB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QUIZLAB_DB_USER"`
	LegacyPassword string `envconfig:"QUIZLAB_DB_PASSWORD"`
	LegacyName     string `envconfig:"QUIZLAB_DB_NAME"`
	LegacySSLMode  string `envconfig:"QUIZLAB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QUIZLAB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QUIZLAB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QUIZLAB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QUIZLAB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"QUIZLAB_REDIS_URL"`
	Address      string        `envconfig:"QUIZLAB_REDIS_ADDR"`
	Password     string        `envconfig:"QUIZLAB_REDIS_PASSWORD"`
	DB           int           `envconfig:"QUIZLAB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QUIZLAB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QUIZLAB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QUIZLAB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUIZLAB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QUIZLAB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether any connection parameters were supplied.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type WebhookConfig struct {
	Secret string `envconfig:"QUIZLAB_WEBHOOK_SECRET" required:"true"`
	// SkipVerify disables signature checks for local inbound testing only.
	SkipVerify bool `envconfig:"QUIZLAB_WEBHOOK_SKIP_VERIFY" default:"false"`
}

type CredentialsConfig struct {
	TokenPepper   string        `envconfig:"QUIZLAB_TOKEN_PEPPER" required:"true"`
	SessionSecret string        `envconfig:"QUIZLAB_SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"QUIZLAB_SESSION_TTL" default:"168h"`
	AccessLinkTTL time.Duration `envconfig:"QUIZLAB_ACCESS_LINK_TTL" default:"24h"`
}

// RateLimitConfig holds the fixed per-route policies. Windows use the
// "<integer> <s|m|h>" form parsed by the ratelimit package.
type RateLimitConfig struct {
	AccessLinkLimit  int64  `envconfig:"QUIZLAB_RATE_LIMIT_ACCESS_LINK_LIMIT" default:"5"`
	AccessLinkWindow string `envconfig:"QUIZLAB_RATE_LIMIT_ACCESS_LINK_WINDOW" default:"15 m"`
	PendingLimit     int64  `envconfig:"QUIZLAB_RATE_LIMIT_PENDING_LIMIT" default:"30"`
	PendingWindow    string `envconfig:"QUIZLAB_RATE_LIMIT_PENDING_WINDOW" default:"1 m"`
	RedirectLimit    int64  `envconfig:"QUIZLAB_RATE_LIMIT_REDIRECT_LIMIT" default:"10"`
	RedirectWindow   string `envconfig:"QUIZLAB_RATE_LIMIT_REDIRECT_WINDOW" default:"1 m"`
}

type MailerConfig struct {
	APIKey      string        `envconfig:"QUIZLAB_MAILER_API_KEY"`
	APIBaseURL  string        `envconfig:"QUIZLAB_MAILER_API_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string        `envconfig:"QUIZLAB_MAILER_FROM_EMAIL"`
	Timeout     time.Duration `envconfig:"QUIZLAB_MAILER_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"QUIZLAB_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ReportTopic string `envconfig:"QUIZLAB_PUBSUB_REPORT_TOPIC" default:"quizlab-report-events"`
}

type PublicConfig struct {
	// BaseURL is the externally visible origin used when building access links.
	BaseURL string `envconfig:"QUIZLAB_PUBLIC_BASE_URL" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"QUIZLAB_DB_HOST": db.LegacyHost,
		"QUIZLAB_DB_USER": db.LegacyUser,
		"QUIZLAB_DB_NAME": db.LegacyName,
	}
	for _, env := range []string{"QUIZLAB_DB_HOST", "QUIZLAB_DB_USER", "QUIZLAB_DB_NAME"} {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either QUIZLAB_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
