package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main folio configuration
type Config struct {
	// Agent
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Scheduler
	Scheduler SchedulerConfig `json:"scheduler" mapstructure:"scheduler"`

	// Tools
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Profile
	Profile ProfileConfig `json:"profile" mapstructure:"profile"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AgentConfig configures the model behind the agent
type AgentConfig struct {
	ID            string  `json:"id" mapstructure:"id"`
	Provider      string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	Model         string  `json:"model" mapstructure:"model"`
	APIKey        string  `json:"api_key" mapstructure:"api_key"`
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt  string  `json:"system_prompt" mapstructure:"system_prompt"`
	MaxIterations int     `json:"max_iterations" mapstructure:"max_iterations"`
}

// SchedulerConfig configures task persistence
type SchedulerConfig struct {
	Store    string `json:"store" mapstructure:"store"` // file, sqlite
	Path     string `json:"path" mapstructure:"path"`
	Timezone string `json:"timezone" mapstructure:"timezone"`
}

// ToolsConfig holds tool configuration
type ToolsConfig struct {
	Allow                  []string `json:"allow" mapstructure:"allow"`
	Deny                   []string `json:"deny" mapstructure:"deny"`
	TimeoutSeconds         int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	ApprovalTimeoutSeconds int      `json:"approval_timeout_seconds" mapstructure:"approval_timeout_seconds"`
}

// Timeout returns the per-call tool timeout
func (t ToolsConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// ApprovalTimeout returns how long a confirmation may wait
func (t ToolsConfig) ApprovalTimeout() time.Duration {
	return time.Duration(t.ApprovalTimeoutSeconds) * time.Second
}

// ProfileConfig points at the candidate profile
type ProfileConfig struct {
	Path  string `json:"path" mapstructure:"path"` // empty for the built-in profile
	Watch bool   `json:"watch" mapstructure:"watch"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"` // approval and task audit trail, "" disables
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// Addr returns host:port
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:            "default",
			Provider:      "anthropic",
			Model:         "claude-3-5-sonnet-20241022",
			Temperature:   0.7,
			MaxTokens:     4096,
			MaxIterations: 10,
		},
		Scheduler: SchedulerConfig{
			Store: "file",
		},
		Tools: ToolsConfig{
			Allow:                  []string{"*"},
			Deny:                   []string{},
			TimeoutSeconds:         30,
			ApprovalTimeoutSeconds: 60,
		},
		Profile: ProfileConfig{
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// HasCredentials reports whether a model provider can be created
func (c *Config) HasCredentials() bool {
	return c.Agent.APIKey != ""
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Agent.APIKey = maskSecret(c.Agent.APIKey)
	masked.Gateway.SharedSecret = maskSecret(c.Gateway.SharedSecret)

	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Agent.ID == "" {
		return fmt.Errorf("agent: id is required")
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent %s: model is required", c.Agent.ID)
	}
	if c.Agent.Provider != "anthropic" && c.Agent.Provider != "openai" {
		return fmt.Errorf("agent %s: invalid provider %s (must be: anthropic, openai)", c.Agent.ID, c.Agent.Provider)
	}

	switch c.Scheduler.Store {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("scheduler: invalid store %s (must be: file, sqlite)", c.Scheduler.Store)
	}
	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("scheduler: invalid timezone %s: %w", c.Scheduler.Timezone, err)
		}
	}

	if c.Tools.TimeoutSeconds <= 0 {
		return fmt.Errorf("tools.timeout_seconds must be positive")
	}
	if c.Tools.ApprovalTimeoutSeconds <= 0 {
		return fmt.Errorf("tools.approval_timeout_seconds must be positive")
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway: invalid port %d", c.Gateway.Port)
	}

	return nil
}
