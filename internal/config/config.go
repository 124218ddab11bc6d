// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the autopr service.
type Config struct {
	// Server settings
	Port int

	// GitHub credentials: a personal access token, or App credentials.
	GitHubToken      string
	GitHubAppID      string
	GitHubPrivateKey string

	// AI provider selection: "openai" or "claude"
	Provider string

	// OpenAI settings
	OpenAIAPIKey string
	OpenAIModel  string

	// Claude settings
	AnthropicAPIKey string
	AnthropicModel  string

	// Worker pool settings
	Workers   int
	QueueSize int

	// Gateway retry settings
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryMultiplier  float64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnvInt("PORT", 8000),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		GitHubAppID:      os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKey: normalizePrivateKey(os.Getenv("GITHUB_PRIVATE_KEY")),
		Provider:         getEnv("PROVIDER", "openai"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		Workers:          getEnvInt("WORKERS", 4),
		QueueSize:        getEnvInt("QUEUE_SIZE", 16),
		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   time.Duration(getEnvInt("RETRY_BASE_SECONDS", 1)) * time.Second,
		RetryMaxDelay:    time.Duration(getEnvInt("RETRY_MAX_SECONDS", 30)) * time.Second,
		RetryMultiplier:  getEnvFloat("RETRY_MULTIPLIER", 2.0),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	if err := c.validateGitHubCredentials(); err != nil {
		return err
	}
	if err := c.validateProviderConfig(); err != nil {
		return err
	}
	return c.validateWorkerConfig()
}

func (c *Config) validateGitHubCredentials() error {
	if c.GitHubToken != "" {
		return nil
	}
	if c.GitHubAppID == "" || c.GitHubPrivateKey == "" {
		return fmt.Errorf("GITHUB_TOKEN or both GITHUB_APP_ID and GITHUB_PRIVATE_KEY are required")
	}
	return nil
}

func (c *Config) validateProviderConfig() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for openai provider")
		}
	case "claude":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for claude provider")
		}
	default:
		return fmt.Errorf("invalid provider: %s (must be 'openai' or 'claude')", c.Provider)
	}
	return nil
}

func (c *Config) validateWorkerConfig() error {
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be greater than 0")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be greater than 0")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be greater than 0")
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("RETRY_MAX_SECONDS must be >= RETRY_BASE_SECONDS")
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be >= 1")
	}
	return nil
}

// normalizePrivateKey tolerates quoted and escaped PEM values as they
// appear in .env files and secret managers.
func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// getEnv gets environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
