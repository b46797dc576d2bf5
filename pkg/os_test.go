package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenvOrDefault(t *testing.T) {
	t.Setenv("SOME_KEY", "value")
	assert.Equal(t, "value", GetenvOrDefault("SOME_KEY", "fallback"))

	t.Setenv("SOME_KEY", "   ")
	assert.Equal(t, "fallback", GetenvOrDefault("SOME_KEY", "fallback"))
}

func TestGetenvIntOrDefault(t *testing.T) {
	t.Setenv("SOME_INT", "42")
	assert.Equal(t, int64(42), GetenvIntOrDefault("SOME_INT", 7))

	t.Setenv("SOME_INT", "not-a-number")
	assert.Equal(t, int64(7), GetenvIntOrDefault("SOME_INT", 7))
}

func TestGetenvBoolOrDefault(t *testing.T) {
	t.Setenv("SOME_BOOL", "true")
	assert.True(t, GetenvBoolOrDefault("SOME_BOOL", false))

	t.Setenv("SOME_BOOL", "nope")
	assert.True(t, GetenvBoolOrDefault("SOME_BOOL", true))
}

func TestSetConfigFromEnvVars(t *testing.T) {
	type config struct {
		Name    string `env:"TEST_CFG_NAME"`
		Count   int    `env:"TEST_CFG_COUNT"`
		Enabled bool   `env:"TEST_CFG_ENABLED"`
		Skipped string
	}

	t.Setenv("TEST_CFG_NAME", "balance-engine")
	t.Setenv("TEST_CFG_COUNT", "15")
	t.Setenv("TEST_CFG_ENABLED", "true")

	cfg := &config{}
	require.NoError(t, SetConfigFromEnvVars(cfg))

	assert.Equal(t, "balance-engine", cfg.Name)
	assert.Equal(t, 15, cfg.Count)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.Skipped)
}

func TestSetConfigFromEnvVarsRequiresPointer(t *testing.T) {
	type config struct{}

	assert.Error(t, SetConfigFromEnvVars(config{}))
}
