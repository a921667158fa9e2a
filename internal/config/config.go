package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/language"
)

// Config holds all engine configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-3.5-turbo)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 8000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Per-attempt request timeout in seconds (default: 30)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Library Configuration:
// - CONTENT_DIR: Root directory scanned for subtitle tracks (default: /subtitles)
// - GLOSSARY_DIR: Fallback directory for glossary files (optional)
// - WRITE_TRANSLATED_FILES: Write translated .srt next to the source track (default: true)
//
// Translate Configuration:
// - TARGET_LANGUAGE: Default target language tag (default: zh)
// - TRANSLATE_STYLE: Freeform register instruction passed to the provider (optional)
// - CHUNK_SIZE: Default entries per provider chunk (default: 50)
// - CONTEXT_WINDOW: Entries of cross-chunk context (default: 3)
// - TASK_WORKERS: Concurrently running tasks; chunks inside one task stay sequential (default: 2)
// - RETRY_ATTEMPTS: Provider attempt ceiling per chunk (default: 3)
// - RETRY_BASE_DELAY_MS: First retry backoff delay in milliseconds (default: 500)
// - EVICTION_CRON: Schedule for evicting old terminal tasks (default: hourly)
// - RETENTION_HOURS: How long terminal tasks stay visible (default: 24)
//
// System Configuration:
// - DATA_DIR: Directory for the sqlite database (default: /app/data)
// - LOG_LEVEL: debug|info|warn|error (default: info)
// - HTTP_ADDR: API listen address (default: :8080)
// - SETTINGS_FILE: Runtime settings file path (default: /app/config/settings.json)

type Config struct {
	// LLM Configuration
	LLM LLMConfig `json:"llm"`

	// Library Configuration
	Library LibraryConfig `json:"library"`

	// Translate Configuration
	Translate TranslateConfig `json:"translate"`

	// System Configuration
	System SystemConfig `json:"system"`

	// HTTP Configuration
	HTTP HTTPConfig `json:"http"`
}

// LLMConfig holds the configuration for the LLM client.
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, self-hosted
// gateways, etc.).
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

// LibraryConfig holds the subtitle catalog configuration.
type LibraryConfig struct {
	ContentDir           string `json:"content_dir"`
	GlossaryDir          string `json:"glossary_dir"`
	WriteTranslatedFiles bool   `json:"write_translated_files"`
}

// TranslateConfig holds the translation policy defaults. Requests may
// override chunk size, context window and model per submission.
type TranslateConfig struct {
	TargetLanguage   language.Tag `json:"target_language"`
	Style            string       `json:"style"`
	ChunkSize        int          `json:"chunk_size"`
	ContextWindow    int          `json:"context_window"`
	TaskWorkers      int          `json:"task_workers"`
	RetryAttempts    int          `json:"retry_attempts"`
	RetryBaseDelayMS int          `json:"retry_base_delay_ms"`
	EvictionCron     string       `json:"eviction_cron"`
	RetentionHours   int          `json:"retention_hours"`
}

// SystemConfig holds the system configuration.
type SystemConfig struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
}

// HTTPConfig holds the API server configuration.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// DBPath returns the sqlite database file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "subtrans.db")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Library: LibraryConfig{
			ContentDir:           getEnvString("CONTENT_DIR", "/subtitles"),
			GlossaryDir:          getEnvString("GLOSSARY_DIR", ""),
			WriteTranslatedFiles: getEnvBool("WRITE_TRANSLATED_FILES", true),
		},
		Translate: TranslateConfig{
			TargetLanguage:   language.Chinese,
			Style:            getEnvString("TRANSLATE_STYLE", ""),
			ChunkSize:        getEnvInt("CHUNK_SIZE", 50),
			ContextWindow:    getEnvInt("CONTEXT_WINDOW", 3),
			TaskWorkers:      getEnvInt("TASK_WORKERS", 2),
			RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", 3),
			RetryBaseDelayMS: getEnvInt("RETRY_BASE_DELAY_MS", 500),
			EvictionCron:     getEnvString("EVICTION_CRON", "0 * * * *"),
			RetentionHours:   getEnvInt("RETENTION_HOURS", 24),
		},
		System: SystemConfig{
			DataDir:  getEnvString("DATA_DIR", "/app/data"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
	}

	if raw := getEnvString("TARGET_LANGUAGE", ""); raw != "" {
		tag, err := language.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TARGET_LANGUAGE %q: %w", raw, err)
		}
		config.Translate.TargetLanguage = tag
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Translate.ChunkSize < 1 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if c.Translate.TaskWorkers < 1 {
		return fmt.Errorf("TASK_WORKERS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
