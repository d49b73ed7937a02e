package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("DATABASE_URL", "")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3, cfg.MaxInterviewFailures)
	assert.Equal(t, 168*time.Hour, cfg.InterviewStartTTL)
	assert.InDelta(t, 0.7, cfg.InterviewWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.ResumeWeight, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost/hiring")
	t.Setenv("PROVIDER_BASE_URL", "https://voice.example.com/")
	t.Setenv("MAX_INTERVIEW_FAILURES", "5")
	t.Setenv("SCORE_RESUME_WEIGHT", "0")
	t.Setenv("WEBHOOK_DEDUPE_TTL", "1h")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "https://voice.example.com", cfg.ProviderBaseURL)
	assert.Equal(t, 5, cfg.MaxInterviewFailures)
	assert.Zero(t, cfg.ResumeWeight)
	assert.Equal(t, time.Hour, cfg.WebhookDedupeTTL)
}

func TestLoadRequiresDatabaseOutsideDev(t *testing.T) {
	t.Setenv("ENV", "staging")
	t.Setenv("DATABASE_URL", "")

	_, err := FromViper(newViper())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsZeroWeights(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("SCORE_INTERVIEW_WEIGHT", "0")
	t.Setenv("SCORE_RESUME_WEIGHT", "0")

	_, err := FromViper(newViper())
	assert.Error(t, err)
}

func TestLoadEnvFilesDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HIRING_TEST_KEY=from-file\nHIRING_TEST_OTHER=file\n"), 0o600))

	t.Setenv("HIRING_TEST_KEY", "from-env")
	t.Setenv("HIRING_TEST_OTHER", "")
	require.NoError(t, os.Unsetenv("HIRING_TEST_OTHER"))

	loadEnvFiles(filepath.Join(dir, "missing.env"), path)

	assert.Equal(t, "from-env", os.Getenv("HIRING_TEST_KEY"))
	assert.Equal(t, "file", os.Getenv("HIRING_TEST_OTHER"))
}
