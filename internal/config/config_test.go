package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("JIRA_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, IdentityProviderLocal, cfg.Identity.Provider)
	assert.Equal(t, "stytch_session_jwt", cfg.App.SessionCookieName)
	assert.False(t, cfg.Jira.Enabled())
}

func TestLoadJiraTrimsTrailingSlash(t *testing.T) {
	t.Setenv("JIRA_BASE_URL", "https://acme.atlassian.net/")
	t.Setenv("JIRA_EMAIL", "ops@acme.test")
	t.Setenv("JIRA_API_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://acme.atlassian.net", cfg.Jira.BaseURL)
	assert.True(t, cfg.Jira.Enabled())
}

func TestLoadRejectsIncompleteStytchConfig(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "stytch")
	t.Setenv("STYTCH_PROJECT_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "okta")

	_, err := Load()
	assert.ErrorContains(t, err, "okta")
}

func TestInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_DB")
}

func TestRequestTimeoutDisabled(t *testing.T) {
	assert.Equal(t, time.Duration(0), AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
}

func TestLoadPoolLifetimes(t *testing.T) {
	t.Setenv("POSTGRES_CONN_MAX_IDLE_SECONDS", "45")
	t.Setenv("POSTGRES_CONN_MAX_LIFE_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Postgres.MaxConnIdleTime)
	assert.Equal(t, 5*time.Minute, cfg.Postgres.MaxConnLifetime)
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "XML")

	_, err := Load()
	assert.ErrorContains(t, err, "LOG_FORMAT")
}
