package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, "posts", cfg.Storage.KeyPrefix)
	assert.Equal(t, 3*24*time.Hour, cfg.Sync.Lookback)
	assert.Equal(t, "ko", cfg.Translate.TargetLang)
	assert.Equal(t, 15*1204, cfg.Translate.MaxBodySize)
	assert.Equal(t, 6, cfg.Translate.Retry.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Translate.Retry.MaxBackoff)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "aws", cfg.Sources[0].Category)
}

func TestParse_ExpandsEnvAndSources(t *testing.T) {
	t.Setenv("TEST_BLOG_BUCKET", "my-bucket")

	cfg, err := Parse([]byte(`
storage:
  bucket: ${TEST_BLOG_BUCKET}
sources:
  - url: https://aws.amazon.com/blogs/machine-learning/
  - url: https://aws.amazon.com/blogs/aws/
    category: news
sync:
  lookback: 24h
  schedule: "0 * * * *"
`))
	require.NoError(t, err)

	assert.Equal(t, "my-bucket", cfg.Storage.Bucket)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "machine-learning", cfg.Sources[0].Category)
	assert.Equal(t, "news", cfg.Sources[1].Category)
	assert.Equal(t, 24*time.Hour, cfg.Sync.Lookback)
	assert.Equal(t, "0 * * * *", cfg.Sync.Schedule)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DRY_RUN", "true")
	t.Setenv("TRANS_DEST_LANG", "ja")
	t.Setenv("EMAIL_TO_ADDRESSES", "a@example.com, b@example.com,,")
	t.Setenv("S3_OBJ_KEY_PREFIX", "translated")

	cfg, err := Parse([]byte("dry_run: false\n"))
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, "ja", cfg.Translate.TargetLang)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.To)
	assert.Equal(t, "translated", cfg.Storage.KeyPrefix)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region: eu-west-1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestValidateTranslator(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	err = cfg.ValidateTranslator()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "translate.endpoint")
	assert.Contains(t, err.Error(), "email.to")

	cfg.DryRun = true
	cfg.Translate.Endpoint = "http://localhost:5000"
	assert.NoError(t, cfg.ValidateTranslator())
}

func TestValidateReader(t *testing.T) {
	cfg, err := Parse([]byte("sources:\n  - url: not a url\n"))
	require.NoError(t, err)

	assert.Error(t, cfg.ValidateReader())
}

func TestCategoryFromURL(t *testing.T) {
	assert.Equal(t, "aws", CategoryFromURL("https://aws.amazon.com/ko/blogs/aws/"))
	assert.Equal(t, "containers", CategoryFromURL("https://aws.amazon.com/blogs/containers"))
	assert.Equal(t, "example.com", CategoryFromURL("https://example.com/"))
}

func TestRetryConfig_Policy(t *testing.T) {
	cfg, err := Parse([]byte("metrics:\n  address: \":9090\"\n"))
	require.NoError(t, err)

	policy := cfg.Translate.Retry.Policy()
	assert.Equal(t, 6, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.Backoff(1))
	assert.Equal(t, 60*time.Second, policy.Backoff(10))
	assert.NotNil(t, policy.IsRetryable)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
}
