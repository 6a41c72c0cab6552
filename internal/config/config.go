package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity providers understood by the session layer.
const (
	IdentityProviderStytch = "stytch"
	IdentityProviderLocal  = "local"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Identity     IdentityConfig
	Jira         JiraConfig
	Assist       AssistConfig
	Worker       WorkerConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	LoginURL              string
	SessionCookieName     string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
}

// RedisConfig holds Redis connection values and cache lifetimes.
type RedisConfig struct {
	Addr                    string
	Password                string
	DB                      int
	StatsCacheTTLSeconds    int
	IdentityCacheTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

// IdentityConfig selects and configures the external identity provider.
type IdentityConfig struct {
	Provider              string
	ProjectID             string
	Secret                string
	APIBaseURL            string
	ExternalOrganization  string
	JWTSecret             string
	TokenTTLMinutes       int
	MemberCacheTTLSeconds int
}

// JiraConfig holds credentials for the escalation target.
type JiraConfig struct {
	BaseURL  string
	Email    string
	APIToken string
}

// AssistConfig configures the bug report generator.
type AssistConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// WorkerConfig holds background job settings.
type WorkerConfig struct {
	ReconcileSchedule string
}

// NotificationConfig holds outbound notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "issue-tracker"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			LoginURL:              getEnv("LOGIN_URL", "/login"),
			SessionCookieName:     getEnv("SESSION_COOKIE_NAME", "stytch_session_jwt"),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MaxConnIdleTime: getEnvAsSeconds("POSTGRES_CONN_MAX_IDLE_SECONDS", 30),
			MaxConnLifetime: getEnvAsSeconds("POSTGRES_CONN_MAX_LIFE_SECONDS", 300),
		},
		Redis: RedisConfig{
			Addr:                    os.Getenv("REDIS_ADDR"),
			Password:                os.Getenv("REDIS_PASSWORD"),
			DB:                      redisDB,
			StatsCacheTTLSeconds:    getEnvAsInt("STATS_CACHE_TTL_SECONDS", 60),
			IdentityCacheTTLSeconds: getEnvAsInt("IDENTITY_CACHE_TTL_SECONDS", 120),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Identity: IdentityConfig{
			Provider:              strings.ToLower(getEnv("IDENTITY_PROVIDER", IdentityProviderLocal)),
			ProjectID:             os.Getenv("STYTCH_PROJECT_ID"),
			Secret:                os.Getenv("STYTCH_SECRET"),
			APIBaseURL:            getEnv("STYTCH_API_BASE_URL", "https://test.stytch.com"),
			ExternalOrganization:  os.Getenv("STYTCH_ORGANIZATION_ID"),
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes:       getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
			MemberCacheTTLSeconds: getEnvAsInt("IDENTITY_MEMBER_CACHE_TTL_SECONDS", 300),
		},
		Jira: JiraConfig{
			BaseURL:  strings.TrimRight(os.Getenv("JIRA_BASE_URL"), "/"),
			Email:    os.Getenv("JIRA_EMAIL"),
			APIToken: os.Getenv("JIRA_API_TOKEN"),
		},
		Assist: AssistConfig{
			APIKey:  os.Getenv("ASSIST_API_KEY"),
			Model:   getEnv("ASSIST_MODEL", "claude-sonnet-4-20250514"),
			BaseURL: getEnv("ASSIST_BASE_URL", "https://api.anthropic.com"),
		},
		Worker: WorkerConfig{
			ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1h"),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Identity.Provider {
	case IdentityProviderLocal:
	case IdentityProviderStytch:
		if c.Identity.ProjectID == "" || c.Identity.Secret == "" {
			return fmt.Errorf("STYTCH_PROJECT_ID and STYTCH_SECRET are required for the stytch identity provider")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.Identity.Provider)
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.Logger.Format)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Enabled reports whether all credentials needed to reach Jira are present.
func (j JiraConfig) Enabled() bool {
	return j.BaseURL != "" && j.Email != "" && j.APIToken != ""
}

// Enabled reports whether the bug report generator can be used.
func (a AssistConfig) Enabled() bool {
	return a.APIKey != ""
}

func (r RedisConfig) StatsCacheTTL() time.Duration {
	return time.Duration(r.StatsCacheTTLSeconds) * time.Second
}

func (r RedisConfig) IdentityCacheTTL() time.Duration {
	return time.Duration(r.IdentityCacheTTLSeconds) * time.Second
}

func (i IdentityConfig) TokenTTL() time.Duration {
	return time.Duration(i.TokenTTLMinutes) * time.Minute
}

func (i IdentityConfig) MemberCacheTTL() time.Duration {
	return time.Duration(i.MemberCacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
