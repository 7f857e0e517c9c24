package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonepe-service/internal/models"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PHONEPE_CLIENT_ID", "client-id")
	t.Setenv("PHONEPE_CLIENT_VERSION", "1")
	t.Setenv("PHONEPE_CLIENT_SECRET", "super-secret")
	t.Setenv("PHONEPE_REDIRECT_URL", "https://merchant.example.com/return")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8092", cfg.Port)
	assert.Equal(t, "uat", cfg.Environment)
	assert.Equal(t, "https://api-preprod.phonepe.com/apis/pg-sandbox", cfg.BaseURL)
	assert.Equal(t, "https://api-preprod.phonepe.com/apis/pg-sandbox", cfg.AuthURL)
	assert.Equal(t, 1, cfg.WebhookSaltIndex)
	assert.Equal(t, "storage/phonepe/token_uat.enc", cfg.TokenCachePath)
	assert.Len(t, cfg.TokenCacheKey, 32)
}

func TestLoadProdEndpoints(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PHONEPE_ENV", "prod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.phonepe.com/apis/pg", cfg.BaseURL)
	assert.Equal(t, "https://api.phonepe.com/apis/identity-manager", cfg.AuthURL)
}

func TestLoadMissingCredentials(t *testing.T) {
	fields := []string{
		"PHONEPE_CLIENT_ID",
		"PHONEPE_CLIENT_VERSION",
		"PHONEPE_CLIENT_SECRET",
		"PHONEPE_REDIRECT_URL",
	}
	for _, field := range fields {
		t.Run(field, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(field, "")

			_, err := Load()
			require.Error(t, err)

			var cfgErr *models.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, field, cfgErr.Field)
		})
	}
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PHONEPE_ENV", "staging")

	_, err := Load()
	require.Error(t, err)

	var cfgErr *models.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "PHONEPE_ENV", cfgErr.Field)
}

func TestLoadProdRequiresHTTPSRedirect(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PHONEPE_ENV", "prod")
	t.Setenv("PHONEPE_REDIRECT_URL", "http://merchant.example.com/return")

	_, err := Load()
	require.Error(t, err)

	var cfgErr *models.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "PHONEPE_REDIRECT_URL", cfgErr.Field)
}

func TestLoadRejectsBadSaltIndex(t *testing.T) {
	for _, bad := range []string{"0", "-1", "abc"} {
		t.Run(bad, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("PHONEPE_WEBHOOK_SALT_INDEX", bad)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadTrimsTrailingSlashes(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PHONEPE_BASE_URL", "https://example.com/pg/")
	t.Setenv("PHONEPE_AUTH_URL", "https://example.com/auth/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/pg", cfg.BaseURL)
	assert.Equal(t, "https://example.com/auth", cfg.AuthURL)
}
