package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Substitute environment variables
	content := string(data)
	content = substituteEnvVars(content)

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEngineConfig loads, defaults and validates the engine configuration.
// Unset engine sections keep the NewEngineConfig defaults; unset per-source
// duration and threshold fields are filled in before validation.
func LoadEngineConfig(filePath string) (*EngineConfig, error) {
	cfg := NewEngineConfig()
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Sources {
		applySourceDefaults(&cfg.Sources[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applySourceDefaults fills zero-valued fields a YAML source entry omitted.
// A zero requests_per_second stays zero: that disables limiting.
func applySourceDefaults(sc *SourceConfig) {
	if sc.RateLimit.RequestsPerSecond > 0 && sc.RateLimit.Burst <= 0 {
		sc.RateLimit.Burst = 10
	}
	if sc.Retry.BaseDelay <= 0 {
		sc.Retry.BaseDelay = time.Second
	}
	if sc.Retry.MaxDelay <= 0 {
		sc.Retry.MaxDelay = 60 * time.Second
	}
	if sc.Breaker.FailureThreshold <= 0 {
		sc.Breaker.FailureThreshold = 5
	}
	if sc.Breaker.RecoveryTimeout <= 0 {
		sc.Breaker.RecoveryTimeout = 30 * time.Second
	}
	if sc.Breaker.HalfOpenMaxCalls <= 0 {
		sc.Breaker.HalfOpenMaxCalls = 3
	}
	if sc.Breaker.SuccessThreshold <= 0 {
		sc.Breaker.SuccessThreshold = 2
	}
	if sc.Sync.PageSize <= 0 {
		sc.Sync.PageSize = 100
	}
	if sc.Credentials == nil {
		sc.Credentials = make(map[string]string)
	}
	if sc.Options == nil {
		sc.Options = make(map[string]string)
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
