package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in COMPOSE_PROVIDER_ORDER
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderPerplexity = "perplexity"
)

// DefaultProviderOrder is the compose fallback order when none is configured
var DefaultProviderOrder = []string{ProviderGemini, ProviderOpenAI, ProviderPerplexity}

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Providers     ProvidersConfig
	Compose       ComposeConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string // Allowed CORS origin for the mail client UI
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	OpenAI     ProviderConfig
	Perplexity ProviderConfig
	Gemini     ProviderConfig
}

// ProviderConfig holds the static configuration of one LLM provider
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration // per attempt
	MaxRetries int           // retries after the first attempt
}

// Configured reports whether the provider has an API key
func (p ProviderConfig) Configured() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// ComposeConfig holds compose orchestration settings
type ComposeConfig struct {
	ProviderOrder     []string
	RequestTimeout    time.Duration // whole compose request, all providers included; zero disables it
	KeyCheckOnStartup bool
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
	TracingEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "https://localhost:3000"),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", true),
				CertFile: getEnv("SSL_CRT_FILE", "ssl/localhost-cert.pem"),
				KeyFile:  getEnv("SSL_KEY_FILE", "ssl/localhost-key.pem"),
			},
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:      getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
				Timeout:    getEnvAsDuration("OPENAI_TIMEOUT", 5*time.Second),
				MaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			},
			Perplexity: ProviderConfig{
				APIKey:     getEnv("PERPLEXITY_API_KEY", ""),
				BaseURL:    getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
				Model:      getEnv("PERPLEXITY_MODEL", "sonar"),
				Timeout:    getEnvAsDuration("PERPLEXITY_TIMEOUT", 5*time.Second),
				MaxRetries: getEnvAsInt("PERPLEXITY_MAX_RETRIES", 3),
			},
			Gemini: ProviderConfig{
				APIKey:     getEnv("GOOGLE_GEMINI_API_KEY", ""),
				BaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
				Model:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
				Timeout:    getEnvAsDuration("GEMINI_TIMEOUT", 5*time.Second),
				MaxRetries: getEnvAsInt("GEMINI_MAX_RETRIES", 3),
			},
		},
		Compose: ComposeConfig{
			ProviderOrder:     getEnvAsList("COMPOSE_PROVIDER_ORDER", DefaultProviderOrder),
			RequestTimeout:    getEnvAsDuration("COMPOSE_REQUEST_TIMEOUT", 0),
			KeyCheckOnStartup: getEnvAsBool("KEY_CHECK_ON_STARTUP", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("TLS enabled but SSL_CRT_FILE or SSL_KEY_FILE is empty")
	}

	// Compose validation
	if len(c.Compose.ProviderOrder) == 0 {
		return fmt.Errorf("compose provider order must name at least one provider")
	}
	for _, name := range c.Compose.ProviderOrder {
		switch name {
		case ProviderGemini, ProviderOpenAI, ProviderPerplexity:
		default:
			return fmt.Errorf("unknown provider in COMPOSE_PROVIDER_ORDER: %q", name)
		}
	}

	for name, p := range c.Providers.byName() {
		if p.MaxRetries < 0 {
			return fmt.Errorf("%s max retries must not be negative", name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("%s timeout must be positive", name)
		}
	}

	// Provider validation (at least one provider API key required in production)
	if c.IsProduction() && !c.Providers.AnyConfigured() {
		return fmt.Errorf("at least one LLM provider must be configured in production")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// AnyConfigured reports whether at least one provider has an API key
func (p *ProvidersConfig) AnyConfigured() bool {
	for _, pc := range p.byName() {
		if pc.Configured() {
			return true
		}
	}
	return false
}

func (p *ProvidersConfig) byName() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		ProviderOpenAI:     p.OpenAI,
		ProviderPerplexity: p.Perplexity,
		ProviderGemini:     p.Gemini,
	}
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 5000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 5000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value into lower-cased, trimmed,
// non-empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
