package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "default", cfg.Agent.ID)
	assert.Equal(t, "anthropic", cfg.Agent.Provider)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, "file", cfg.Scheduler.Store)
	assert.Equal(t, []string{"*"}, cfg.Tools.Allow)
	assert.Equal(t, 30, cfg.Tools.TimeoutSeconds)
	assert.Equal(t, 60, cfg.Tools.ApprovalTimeoutSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.Gateway.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing agent id", mutate: func(c *Config) { c.Agent.ID = "" }},
		{name: "missing model", mutate: func(c *Config) { c.Agent.Model = "" }},
		{name: "unknown provider", mutate: func(c *Config) { c.Agent.Provider = "gemini" }},
		{name: "unknown store", mutate: func(c *Config) { c.Scheduler.Store = "redis" }},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{name: "zero tool timeout", mutate: func(c *Config) { c.Tools.TimeoutSeconds = 0 }},
		{name: "zero approval timeout", mutate: func(c *Config) { c.Tools.ApprovalTimeoutSeconds = 0 }},
		{name: "bad port", mutate: func(c *Config) { c.Gateway.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("sqlite with timezone", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scheduler.Store = "sqlite"
		cfg.Scheduler.Timezone = "Europe/London"
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.APIKey = "sk-ant-secret"
	cfg.Gateway.SharedSecret = "hunter2"

	out := cfg.String()

	assert.NotContains(t, out, "sk-ant-secret")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "***")
	assert.Equal(t, "sk-ant-secret", cfg.Agent.APIKey)
}

func TestToolsConfig_Durations(t *testing.T) {
	tools := ToolsConfig{TimeoutSeconds: 5, ApprovalTimeoutSeconds: 90}

	assert.Equal(t, "5s", tools.Timeout().String())
	assert.Equal(t, "1m30s", tools.ApprovalTimeout().String())
}
