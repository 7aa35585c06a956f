package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/learnai")
	t.Setenv("ENCRYPTION_KEY", testKey)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, 2, cfg.FreeLimit)
	assert.Equal(t, 50, cfg.PremiumLimit)
	assert.Equal(t, time.Hour, cfg.ClaimTokenTTL)
	assert.Equal(t, 15*time.Second, cfg.VerifyTimeout)
	assert.Equal(t, "sandbox", cfg.Apple.Environment)
	assert.Equal(t, "https://buy.itunes.apple.com/verifyReceipt", cfg.Apple.ProductionURL)
	assert.False(t, cfg.Apple.AllowMockReceipts)
	assert.Empty(t, cfg.Apple.ProductIDs)
	assert.Equal(t, "data/courseCounts.json", cfg.CourseCountsFile)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("FREE_MONTHLY_COURSE_LIMIT", "100")
	t.Setenv("APPLE_ENVIRONMENT", "Production")
	t.Setenv("APPLE_PRODUCT_IDS", "premium_monthly, premium_yearly,")
	t.Setenv("ALLOW_MOCK_RECEIPTS", "true")
	t.Setenv("CLAIM_TOKEN_TTL", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.FreeLimit)
	assert.Equal(t, "production", cfg.Apple.Environment)
	assert.Equal(t, []string{"premium_monthly", "premium_yearly"}, cfg.Apple.ProductIDs)
	assert.True(t, cfg.Apple.AllowMockReceipts)
	assert.Equal(t, 30*time.Minute, cfg.ClaimTokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_RequiredAndInvalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	setRequired(t)
	t.Setenv("ENCRYPTION_KEY", "short")
	_, err = Load()
	assert.ErrorContains(t, err, "ENCRYPTION_KEY")

	setRequired(t)
	t.Setenv("APPLE_ENVIRONMENT", "staging")
	_, err = Load()
	assert.ErrorContains(t, err, "APPLE_ENVIRONMENT")

	t.Setenv("APPLE_ENVIRONMENT", "")
	t.Setenv("CLAIM_TOKEN_TTL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "CLAIM_TOKEN_TTL")

	t.Setenv("CLAIM_TOKEN_TTL", "")
	t.Setenv("FREE_MONTHLY_COURSE_LIMIT", "two")
	_, err = Load()
	assert.ErrorContains(t, err, "FREE_MONTHLY_COURSE_LIMIT")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEARNAI_DOTENV_PROBE=from-file\n"), 0o600))
	t.Setenv("LEARNAI_DOTENV_PROBE", "")
	os.Unsetenv("LEARNAI_DOTENV_PROBE")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("LEARNAI_DOTENV_PROBE"))
}
