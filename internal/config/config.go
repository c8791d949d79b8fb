// Package config provides configuration for the context tracker.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the context tracker configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Capture
	DefaultCaptureInterval time.Duration `yaml:"default_capture_interval"`
	CaptureCommand         string        `yaml:"capture_command"`
	CaptureDir             string        `yaml:"capture_dir"`
	CaptureGlob            string        `yaml:"capture_glob"`
	CaptureTimeout         time.Duration `yaml:"capture_timeout"`
	PolicyFile             string        `yaml:"policy_file"`

	// Analysis retry policy
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	AnalyzeTimeout    time.Duration `yaml:"analyze_timeout"`
	AnalyzeCeiling    time.Duration `yaml:"analyze_ceiling"`

	// Analyzer provider selection
	Provider  string         `yaml:"provider"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ProviderConfig holds credentials and models for one analyzer provider.
type ProviderConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	VisionModel string `yaml:"vision_model"`
	TextModel   string `yaml:"text_model"`
}

// Load loads configuration from environment variables. When CONFIG_FILE is
// set, the YAML file is applied first and environment variables override it.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML file path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DefaultCaptureInterval = getEnvDuration("CAPTURE_INTERVAL_MS", cfg.DefaultCaptureInterval)
	cfg.CaptureCommand = getEnv("CAPTURE_COMMAND", cfg.CaptureCommand)
	cfg.CaptureDir = getEnv("CAPTURE_DIR", cfg.CaptureDir)
	cfg.CaptureGlob = getEnv("CAPTURE_GLOB", cfg.CaptureGlob)
	cfg.CaptureTimeout = getEnvDuration("CAPTURE_TIMEOUT_MS", cfg.CaptureTimeout)
	cfg.PolicyFile = getEnv("POLICY_FILE", cfg.PolicyFile)
	cfg.MaxAttempts = getEnvInt("MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.BackoffBase = getEnvDuration("BACKOFF_BASE_MS", cfg.BackoffBase)
	cfg.BackoffMultiplier = getEnvFloat("BACKOFF_MULTIPLIER", cfg.BackoffMultiplier)
	cfg.BackoffMax = getEnvDuration("BACKOFF_MAX_MS", cfg.BackoffMax)
	cfg.AnalyzeTimeout = getEnvDuration("ANALYZE_TIMEOUT_MS", cfg.AnalyzeTimeout)
	cfg.AnalyzeCeiling = getEnvDuration("ANALYZE_CEILING_MS", cfg.AnalyzeCeiling)
	cfg.Provider = getEnv("LLM_PROVIDER", cfg.Provider)
	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.VisionModel = getEnv("OPENAI_VISION_MODEL", cfg.OpenAI.VisionModel)
	cfg.OpenAI.TextModel = getEnv("OPENAI_TEXT_MODEL", cfg.OpenAI.TextModel)
	cfg.Anthropic.APIKey = getEnv("ANTHROPIC_API_KEY", cfg.Anthropic.APIKey)
	cfg.Anthropic.BaseURL = getEnv("ANTHROPIC_BASE_URL", cfg.Anthropic.BaseURL)
	cfg.Anthropic.VisionModel = getEnv("ANTHROPIC_MODEL", cfg.Anthropic.VisionModel)
	cfg.Anthropic.TextModel = getEnv("ANTHROPIC_TEXT_MODEL", cfg.Anthropic.TextModel)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:               8080,
		DatabaseURL:            "file:context.db?cache=shared&mode=rwc",
		DefaultCaptureInterval: 15 * time.Second,
		CaptureTimeout:         10 * time.Second,
		MaxAttempts:            3,
		BackoffBase:            500 * time.Millisecond,
		BackoffMultiplier:      2,
		BackoffMax:             30 * time.Second,
		AnalyzeTimeout:         60 * time.Second,
		AnalyzeCeiling:         3 * time.Minute,
		Provider:               "openai",
		OpenAI: ProviderConfig{
			VisionModel: "gpt-4o",
			TextModel:   "gpt-4o",
		},
		Anthropic: ProviderConfig{
			BaseURL:     "https://api.anthropic.com",
			VisionModel: "claude-3-5-sonnet-latest",
			TextModel:   "claude-3-5-sonnet-latest",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate checks that the retry and scheduling settings are usable.
func (c *Config) Validate() error {
	if c.DefaultCaptureInterval <= 0 {
		return fmt.Errorf("default capture interval must be positive, got %s", c.DefaultCaptureInterval)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %v", c.BackoffMultiplier)
	}
	if c.BackoffBase < 0 || c.BackoffMax < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	if c.AnalyzeTimeout <= 0 || c.AnalyzeCeiling <= 0 {
		return fmt.Errorf("analyze timeout and ceiling must be positive")
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration reads a millisecond count, matching the *_MS variable names.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
