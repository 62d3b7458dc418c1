package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_ValidateAPIKey(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAPIKey("sk-ant-abc", "anthropic"))
	assert.Error(t, v.ValidateAPIKey("abc", "anthropic"))
	assert.NoError(t, v.ValidateAPIKey("sk-abc", "openai"))
	assert.Error(t, v.ValidateAPIKey("", "openai"))
}

func TestValidator_Ranges(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTemperature(0.5))
	assert.Error(t, v.ValidateTemperature(1.5))
	assert.NoError(t, v.ValidateMaxTokens(4096))
	assert.Error(t, v.ValidateMaxTokens(0))
	assert.Error(t, v.ValidateMaxTokens(300000))
	assert.NoError(t, v.ValidateLogLevel("warn"))
	assert.Error(t, v.ValidateLogLevel("verbose"))
}

func TestValidator_ValidateToolNames(t *testing.T) {
	v := NewValidator()
	known := []string{"getResume", "scheduleTask"}

	assert.NoError(t, v.ValidateToolNames([]string{"*", "getResume"}, known))
	err := v.ValidateToolNames([]string{"exec"}, known)
	assert.ErrorContains(t, err, "exec")
}

func TestValidator_ValidateConfig(t *testing.T) {
	v := NewValidator()

	cfg := DefaultConfig()
	assert.Empty(t, v.ValidateConfig(cfg, []string{"getResume"}))

	cfg.Agent.APIKey = "not-a-key"
	cfg.Tools.Deny = []string{"exec"}
	cfg.Gateway.Host = "0.0.0.0"
	assert.Len(t, v.ValidateConfig(cfg, []string{"getResume"}), 3)
}
