package config

import (
	"fmt"
	"strings"
)

// Validator checks configuration values beyond what Validate requires.
// Its findings are reported as warnings.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateToolNames checks that policy entries name registered tools
func (v *Validator) ValidateToolNames(names []string, known []string) error {
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	unknown := []string{}
	for _, name := range names {
		if name != "*" && !knownSet[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown tools in policy: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ValidateConfig performs comprehensive validation. knownTools lists the
// registered tool names.
func (v *Validator) ValidateConfig(cfg *Config, knownTools []string) []error {
	var errors []error

	if cfg.Agent.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Agent.APIKey, cfg.Agent.Provider); err != nil {
			errors = append(errors, fmt.Errorf("agent %s: %w", cfg.Agent.ID, err))
		}
	}
	if err := v.ValidateTemperature(cfg.Agent.Temperature); err != nil {
		errors = append(errors, fmt.Errorf("agent %s: %w", cfg.Agent.ID, err))
	}
	if err := v.ValidateMaxTokens(cfg.Agent.MaxTokens); err != nil {
		errors = append(errors, fmt.Errorf("agent %s: %w", cfg.Agent.ID, err))
	}

	if len(knownTools) > 0 {
		if err := v.ValidateToolNames(cfg.Tools.Allow, knownTools); err != nil {
			errors = append(errors, fmt.Errorf("tools.allow: %w", err))
		}
		if err := v.ValidateToolNames(cfg.Tools.Deny, knownTools); err != nil {
			errors = append(errors, fmt.Errorf("tools.deny: %w", err))
		}
	}

	if cfg.Gateway.SharedSecret == "" && cfg.Gateway.Host != "127.0.0.1" && cfg.Gateway.Host != "localhost" {
		errors = append(errors, fmt.Errorf("gateway listens on %s without a shared secret", cfg.Gateway.Host))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
