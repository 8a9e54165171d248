// Copyright 2025 Analyst Assist Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sonar    SonarConfig    `mapstructure:"sonar"`
	History  HistoryConfig  `mapstructure:"history"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	UploadDir string `mapstructure:"upload_dir"`
}

// SonarConfig contains Perplexity Sonar API configuration
type SonarConfig struct {
	APIKey      string  `mapstructure:"apikey"`
	Endpoint    string  `mapstructure:"endpoint"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// HistoryConfig bounds the in-memory conversation store
type HistoryConfig struct {
	MaxUsers int           `mapstructure:"max_users"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RetryConfig controls upstream call retries
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// FeedbackConfig contains feedback storage configuration
type FeedbackConfig struct {
	StorageType string `mapstructure:"storage_type"`
	FilePath    string `mapstructure:"file_path"`
	DBPath      string `mapstructure:"db_path"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
// A missing Sonar API key fails the load; the service never starts and
// defers the failure to request time.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ANALYST_ASSIST")

	// Read configuration file; running from env vars alone is supported
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.upload_dir", os.TempDir())

	// Sonar defaults
	v.SetDefault("sonar.endpoint", "https://api.perplexity.ai")
	v.SetDefault("sonar.model", "sonar-pro")
	v.SetDefault("sonar.max_tokens", 4096)
	v.SetDefault("sonar.temperature", 0.2)

	// History defaults
	v.SetDefault("history.max_users", 1000)
	v.SetDefault("history.ttl", 30*time.Minute)

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Feedback defaults
	v.SetDefault("feedback.storage_type", "file")
	v.SetDefault("feedback.file_path", "./feedback.log")
	v.SetDefault("feedback.db_path", "./feedback.db")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	// Check for CONFIG_PATH environment variable
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	// Use provided config path
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations; absence is tolerated
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"SONAR_API_KEY":      "sonar.apikey",
		"PERPLEXITY_API_KEY": "sonar.apikey",
		"SONAR_ENDPOINT":     "sonar.endpoint",
		"SONAR_MODEL":        "sonar.model",
		"PORT":               "server.port",
		"LOG_LEVEL":          "logging.level",
		"LOG_FORMAT":         "logging.format",
		"LOG_OUTPUT":         "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errors []ValidationError

	if config.Sonar.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "sonar.apikey",
			Message: "Sonar API key is required. Set via config file or SONAR_API_KEY environment variable",
		})
	}

	if config.Sonar.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "sonar.endpoint",
			Message: "Sonar endpoint is required",
		})
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if config.Sonar.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sonar.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.Sonar.Temperature < 0 || config.Sonar.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "sonar.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.History.MaxUsers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "history.max_users",
			Message: "max_users must be greater than 0",
		})
	}

	if config.History.TTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "history.ttl",
			Message: "ttl must be greater than or equal to 0",
		})
	}

	if config.Retry.MaxAttempts <= 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Message: "max_attempts must be greater than 0",
		})
	}

	if config.Retry.Delay < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.delay",
			Message: "delay must be greater than or equal to 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	validStorageTypes := []string{"file", "sqlite"}
	if !contains(validStorageTypes, config.Feedback.StorageType) {
		errors = append(errors, ValidationError{
			Field:   "feedback.storage_type",
			Message: fmt.Sprintf("storage type must be one of: %s", strings.Join(validStorageTypes, ", ")),
		})
	}

	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.Sonar.APIKey != "" {
		masked.Sonar.APIKey = maskValue(masked.Sonar.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config: %v\n", err)
			return
		}

		callback(config)
	})

	return nil
}
