package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 5000, cfg.Server.Port)
				assert.True(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "ssl/localhost-cert.pem", cfg.Server.TLS.CertFile)
				assert.Equal(t, "ssl/localhost-key.pem", cfg.Server.TLS.KeyFile)
				assert.Equal(t, "https://localhost:3000", cfg.Server.FrontendURL)
				assert.Equal(t, []string{"gemini", "openai", "perplexity"}, cfg.Compose.ProviderOrder)
				assert.Zero(t, cfg.Compose.RequestTimeout)
				assert.False(t, cfg.Providers.AnyConfigured())
			},
		},
		{
			name:    "provider retry defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				for _, p := range []ProviderConfig{cfg.Providers.OpenAI, cfg.Providers.Perplexity, cfg.Providers.Gemini} {
					assert.Equal(t, 3, p.MaxRetries)
					assert.Equal(t, 5*time.Second, p.Timeout)
				}
				assert.Equal(t, "gpt-3.5-turbo", cfg.Providers.OpenAI.Model)
				assert.Equal(t, "sonar", cfg.Providers.Perplexity.Model)
				assert.Equal(t, "gemini-1.5-flash", cfg.Providers.Gemini.Model)
			},
		},
		{
			name: "production configuration with providers",
			envVars: map[string]string{
				"ENVIRONMENT":           "production",
				"SERVER_PORT":           "9000",
				"OPENAI_API_KEY":        "sk-xxxxx",
				"GOOGLE_GEMINI_API_KEY": "gem-xxxxx",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.True(t, cfg.Providers.OpenAI.Configured())
				assert.True(t, cfg.Providers.Gemini.Configured())
				assert.False(t, cfg.Providers.Perplexity.Configured())
			},
		},
		{
			name: "provider overrides",
			envVars: map[string]string{
				"PERPLEXITY_API_KEY":     "pplx-abc",
				"PERPLEXITY_BASE_URL":    "http://localhost:9999",
				"PERPLEXITY_MODEL":       "sonar-pro",
				"PERPLEXITY_TIMEOUT":     "2s",
				"PERPLEXITY_MAX_RETRIES": "1",
			},
			check: func(t *testing.T, cfg *Config) {
				p := cfg.Providers.Perplexity
				assert.Equal(t, "pplx-abc", p.APIKey)
				assert.Equal(t, "http://localhost:9999", p.BaseURL)
				assert.Equal(t, "sonar-pro", p.Model)
				assert.Equal(t, 2*time.Second, p.Timeout)
				assert.Equal(t, 1, p.MaxRetries)
			},
		},
		{
			name: "compose provider order",
			envVars: map[string]string{
				"COMPOSE_PROVIDER_ORDER":  " Perplexity, openai ,,",
				"COMPOSE_REQUEST_TIMEOUT": "20s",
				"KEY_CHECK_ON_STARTUP":    "true",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"perplexity", "openai"}, cfg.Compose.ProviderOrder)
				assert.Equal(t, 20*time.Second, cfg.Compose.RequestTimeout)
				assert.True(t, cfg.Compose.KeyCheckOnStartup)
			},
		},
		{
			name: "unknown provider in order",
			envVars: map[string]string{
				"COMPOSE_PROVIDER_ORDER": "openai,claude",
			},
			wantErr: true,
		},
		{
			name: "custom timeouts",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "console",
				"METRICS_ENABLED": "false",
				"TRACING_ENABLED": "true",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "console", cfg.Observability.LogFormat)
				assert.False(t, cfg.Observability.MetricsEnabled)
				assert.True(t, cfg.Observability.TracingEnabled)
			},
		},
		{
			name: "TLS configuration overrides",
			envVars: map[string]string{
				"ENVIRONMENT":  "development",
				"TLS_ENABLED":  "false",
				"SSL_CRT_FILE": "/etc/ssl/certs/server.crt",
				"SSL_KEY_FILE": "/etc/ssl/private/server.key",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "/etc/ssl/certs/server.crt", cfg.Server.TLS.CertFile)
				assert.Equal(t, "/etc/ssl/private/server.key", cfg.Server.TLS.KeyFile)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "production without any provider",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	provider := ProviderConfig{Timeout: 5 * time.Second, MaxRetries: 3}
	return &Config{
		Environment: "development",
		Server:      ServerConfig{Port: 5000},
		Providers: ProvidersConfig{
			OpenAI:     provider,
			Perplexity: provider,
			Gemini:     provider,
		},
		Compose: ComposeConfig{
			ProviderOrder: []string{"gemini", "openai", "perplexity"},
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid development config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
			errMsg:  "invalid server port",
		},
		{
			name:    "tls without cert",
			mutate:  func(c *Config) { c.Server.TLS.Enabled = true },
			wantErr: true,
			errMsg:  "SSL_CRT_FILE",
		},
		{
			name:    "empty provider order",
			mutate:  func(c *Config) { c.Compose.ProviderOrder = nil },
			wantErr: true,
			errMsg:  "at least one provider",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Providers.Gemini.MaxRetries = -1 },
			wantErr: true,
			errMsg:  "gemini max retries",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Providers.OpenAI.Timeout = 0 },
			wantErr: true,
			errMsg:  "openai timeout",
		},
		{
			name: "production with one key",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Providers.Perplexity.APIKey = "pplx-key"
			},
			wantErr: false,
		},
		{
			name: "production with blank key",
			mutate: func(c *Config) {
				c.Environment = "prod"
				c.Providers.OpenAI.APIKey = "   "
			},
			wantErr: true,
			errMsg:  "at least one LLM provider",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "" },
			wantErr: true,
			errMsg:  "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsDevelopment())
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 5000,
	}

	assert.Equal(t, "0.0.0.0:5000", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "TEST_BOOL", "true", false, true},
		{"false", "TEST_BOOL", "false", true, false},
		{"empty value", "TEST_BOOL", "", true, true},
		{"invalid bool", "TEST_BOOL", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsBool(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "TEST_DURATION", "30s", 10 * time.Second, 30 * time.Second},
		{"empty value", "TEST_DURATION", "", 10 * time.Second, 10 * time.Second},
		{"invalid duration", "TEST_DURATION", "not-a-duration", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsDuration(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	defaults := []string{"a", "b"}

	os.Clearenv()
	assert.Equal(t, defaults, getEnvAsList("TEST_LIST", defaults))

	os.Setenv("TEST_LIST", " , ,")
	assert.Equal(t, defaults, getEnvAsList("TEST_LIST", defaults))

	os.Setenv("TEST_LIST", "X, y")
	assert.Equal(t, []string{"x", "y"}, getEnvAsList("TEST_LIST", defaults))

	got := getEnvAsList("MISSING_LIST", defaults)
	got[0] = "mutated"
	assert.Equal(t, "a", defaults[0])
}
