package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "axiom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv(SecretKeyEnv, "")
	cfg := Default()

	assert.Equal(t, 128, cfg.Engine.HiddenSize)
	assert.Equal(t, "fast", cfg.Pipeline.DefaultMode)
	assert.Equal(t, "logs/c0", cfg.Audit.Dir)
	assert.Equal(t, "axiom_pipeline", cfg.Audit.Label)
	assert.Equal(t, "axiom:audit", cfg.Audit.Mirror.Redis.List)
	assert.Equal(t, "tlc", cfg.Verifier.Tool)
	assert.Equal(t, "core/verify/axiom_hive_core.tla", cfg.Verifier.SpecPath)
	assert.Equal(t, "core/verify/axiom_hive_core.cfg", cfg.Verifier.ConfigPath)
	assert.Equal(t, 5*time.Second, cfg.Verifier.Timeout.Std())
	assert.Equal(t, "axiom.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	_, ok, err := cfg.SecretKey()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFullFile(t *testing.T) {
	t.Setenv(SecretKeyEnv, "")
	path := writeConfig(t, `
engine:
  hidden_size: 64
pipeline:
  default_mode: hybrid
audit:
  dir: audit
  label: nightly
  secret_key: "00ff"
  mirror:
    redis:
      address: localhost:6379
      db: 2
verifier:
  tool: /usr/local/bin/tlc
  spec_path: /specs/core.tla
  config_path: specs/core.cfg
  timeout: 750ms
store:
  path: /var/lib/axiom/runs.db
logging:
  level: debug
  format: json
`)
	base := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Engine.HiddenSize)
	assert.Equal(t, "hybrid", cfg.Pipeline.DefaultMode)
	assert.Equal(t, filepath.Join(base, "audit"), cfg.Audit.Dir)
	assert.Equal(t, "nightly", cfg.Audit.Label)
	assert.Equal(t, "localhost:6379", cfg.Audit.Mirror.Redis.Address)
	assert.Equal(t, 2, cfg.Audit.Mirror.Redis.DB)
	assert.Equal(t, "axiom:audit", cfg.Audit.Mirror.Redis.List)
	assert.Equal(t, "/usr/local/bin/tlc", cfg.Verifier.Tool)
	assert.Equal(t, "/specs/core.tla", cfg.Verifier.SpecPath)
	assert.Equal(t, filepath.Join(base, "specs/core.cfg"), cfg.Verifier.ConfigPath)
	assert.Equal(t, 750*time.Millisecond, cfg.Verifier.Timeout.Std())
	assert.Equal(t, "/var/lib/axiom/runs.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	key, ok, err := cfg.SecretKey()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "00ff", key.String())
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	t.Setenv(SecretKeyEnv, "")
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Engine.HiddenSize)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "axiom.db"), cfg.Store.Path)
}

func TestLoadEnvOverridesSecretKey(t *testing.T) {
	t.Setenv(SecretKeyEnv, "abcd")
	path := writeConfig(t, "audit:\n  secret_key: \"0011\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abcd", cfg.Audit.SecretKey)
}

func TestLoadSchemaViolations(t *testing.T) {
	tests := map[string]string{
		"unknown top-level key": "engines:\n  hidden_size: 4\n",
		"unknown nested key":    "engine:\n  size: 4\n",
		"non-positive size":     "engine:\n  hidden_size: 0\n",
		"bad mode":              "pipeline:\n  default_mode: turbo\n",
		"bad label":             "audit:\n  label: ../escape\n",
		"odd hex key":           "audit:\n  secret_key: \"abc\"\n",
		"bad timeout":           "verifier:\n  timeout: soon\n",
		"bare number timeout":   "verifier:\n  timeout: 5\n",
		"bad level":             "logging:\n  level: loud\n",
		"bad format":            "logging:\n  format: xml\n",
		"negative db":           "audit:\n  mirror:\n    redis:\n      db: -1\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "engine: [unclosed\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestSecretKeyInvalidHex(t *testing.T) {
	cfg := &Config{Audit: AuditConfig{SecretKey: "zz"}}
	_, _, err := cfg.SecretKey()
	assert.Error(t, err)
}

func TestValidateNil(t *testing.T) {
	assert.NoError(t, Validate(nil))
}
