package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves the test into an empty directory so a developer's
// config.yaml never leaks into assertions.
func chdirTemp(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pythia.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Gamma.BaseURL)
	assert.Equal(t, 100, cfg.Gamma.PageSize)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, 90, cfg.Research.Budget.PerTaskTimeoutSecs)
	assert.Equal(t, 60, cfg.Research.Budget.StageTimeoutSecs)
	assert.Equal(t, 180, cfg.Research.Budget.TotalTimeoutSecs)
	assert.Equal(t, 10, cfg.Research.Budget.Concurrency)
	assert.Equal(t, 2, cfg.Research.Budget.MaxRetries)
	assert.Equal(t, 8, cfg.Research.MaxNewsLinks)
	assert.Equal(t, 7, cfg.Research.MaxKeyFindings)

	assert.Equal(t, 45, cfg.Risk.Budget.PerTaskTimeoutSecs)
	assert.Equal(t, 90, cfg.Risk.Budget.TotalTimeoutSecs)
	assert.Equal(t, 5, cfg.Risk.BatchSize)
	assert.Equal(t, 20, cfg.Risk.MaxFindings)
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/pythia
risk:
  batch_size: 3
server:
  port: 9090
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/pythia", cfg.Store.DatabaseURL)
	assert.Equal(t, 3, cfg.Risk.BatchSize)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Research.Budget.Concurrency)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 20, cfg.Risk.MaxFindings)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)

	yaml := "server:\n  port: 9090\n"
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	t.Setenv("PYTHIA_SERVER_PORT", "7000")
	t.Setenv("PYTHIA_STORE_DRIVER", "postgres")
	t.Setenv("PYTHIA_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port, "env beats file")
	assert.Equal(t, "postgres", cfg.Store.Driver, "env beats default")
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestBudgetConversion(t *testing.T) {
	bc := BudgetConfig{
		PerTaskTimeoutSecs: 30,
		StageTimeoutSecs:   20,
		TotalTimeoutSecs:   60,
		Concurrency:        4,
		MaxRetries:         1,
		RetryDelaySecs:     2,
	}
	b := bc.Budget()
	assert.Equal(t, 30*time.Second, b.PerTaskTimeout)
	assert.Equal(t, 20*time.Second, b.StageTimeout)
	assert.Equal(t, 60*time.Second, b.TotalTimeout)
	assert.Equal(t, 4, b.Concurrency)
	assert.Equal(t, 1, b.MaxRetries)
	assert.Equal(t, 2*time.Second, b.RetryDelay)
}

func TestAgentConfigConversion(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	rc := cfg.Research.AgentConfig()
	assert.Equal(t, 90*time.Second, rc.Budget.PerTaskTimeout)
	assert.Equal(t, 8, rc.MaxNewsLinks)

	kc := cfg.Risk.AgentConfig()
	assert.Equal(t, 45*time.Second, kc.Budget.PerTaskTimeout)
	assert.Equal(t, 5, kc.BatchSize)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	t.Run("research requires key", func(t *testing.T) {
		err := cfg.Validate("research")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic.key")
	})

	t.Run("markets needs only a store", func(t *testing.T) {
		assert.NoError(t, cfg.Validate("markets"))
	})

	t.Run("serve with key passes", func(t *testing.T) {
		c := *cfg
		c.Anthropic.Key = "sk-test"
		assert.NoError(t, c.Validate("serve"))
	})

	t.Run("bad driver", func(t *testing.T) {
		c := *cfg
		c.Store.Driver = "mysql"
		err := c.Validate("markets")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.driver")
	})

	t.Run("unknown mode", func(t *testing.T) {
		assert.Error(t, cfg.Validate("telemetry"))
	})
}

func TestInitLogger(t *testing.T) {
	t.Run("console", func(t *testing.T) {
		require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	})
	t.Run("json", func(t *testing.T) {
		require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	})
	t.Run("invalid level", func(t *testing.T) {
		require.Error(t, InitLogger(LogConfig{Level: "shout", Format: "console"}))
	})
}
