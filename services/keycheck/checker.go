// Package keycheck calls each configured LLM provider once to tell whether
// their API keys are usable.
package keycheck

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/config"
	"github.com/imfrisiv/mail-backend/services/transport"
)

// Status is the outcome of one key check
type Status string

const (
	StatusNotSet       Status = "not_set"
	StatusOK           Status = "ok"
	StatusUnauthorized Status = "unauthorized"
	StatusRateLimited  Status = "rate_limited"
	StatusUnreachable  Status = "unreachable"
	StatusUnexpected   Status = "unexpected"
)

const (
	checkTimeout     = 5 * time.Second
	perplexityPrefix = "pplx-"
)

// Report describes the state of one provider key
type Report struct {
	Provider   string   `json:"provider"`
	EnvVar     string   `json:"env_var"`
	Status     Status   `json:"status"`
	HTTPStatus int      `json:"http_status,omitempty"`
	Message    string   `json:"message,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Usable reports whether the provider accepted the key
func (r Report) Usable() bool {
	return r.Status == StatusOK
}

type keyCheck struct {
	provider string
	envVar   string
	apiKey   string
	request  func(key string) transport.Request
	warn     func(key string) []string
}

// Checker verifies provider keys
type Checker struct {
	client *transport.Client
	checks []keyCheck
	logger *zap.Logger
}

// NewChecker creates a checker for the given provider configuration
func NewChecker(cfg config.ProvidersConfig, httpClient *http.Client, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := transport.DefaultPolicy()
	policy.Retries = 0
	policy.Timeout = checkTimeout

	openaiBase := strings.TrimRight(cfg.OpenAI.BaseURL, "/")
	perplexityBase := strings.TrimRight(cfg.Perplexity.BaseURL, "/")
	geminiBase := strings.TrimRight(cfg.Gemini.BaseURL, "/")

	return &Checker{
		client: transport.NewClient(httpClient, policy, logger),
		logger: logger,
		checks: []keyCheck{
			{
				provider: config.ProviderOpenAI,
				envVar:   "OPENAI_API_KEY",
				apiKey:   cfg.OpenAI.APIKey,
				request: func(key string) transport.Request {
					return transport.Request{
						Method:  http.MethodGet,
						URL:     openaiBase + "/models",
						Headers: map[string]string{"Authorization": "Bearer " + key},
					}
				},
			},
			{
				provider: config.ProviderPerplexity,
				envVar:   "PERPLEXITY_API_KEY",
				apiKey:   cfg.Perplexity.APIKey,
				request: func(key string) transport.Request {
					return transport.Request{
						Method: http.MethodPost,
						URL:    perplexityBase + "/chat/completions",
						Headers: map[string]string{
							"Authorization": "Bearer " + key,
							"Content-Type":  "application/json",
						},
						Body: []byte(`{"query":"healthcheck"}`),
					}
				},
				warn: func(key string) []string {
					if strings.HasPrefix(key, perplexityPrefix) {
						return nil
					}
					return []string{"key does not start with the expected pplx- prefix"}
				},
			},
			{
				provider: config.ProviderGemini,
				envVar:   "GOOGLE_GEMINI_API_KEY",
				apiKey:   cfg.Gemini.APIKey,
				request: func(key string) transport.Request {
					return transport.Request{
						Method: http.MethodGet,
						URL:    geminiBase + "/models?key=" + key,
					}
				},
			},
		},
	}
}

// Check calls every provider sequentially and returns one report each.
// Key checks never retry.
func (c *Checker) Check(ctx context.Context) []Report {
	reports := make([]Report, 0, len(c.checks))
	for _, p := range c.checks {
		reports = append(reports, c.run(ctx, p))
	}
	return reports
}

func (c *Checker) run(ctx context.Context, p keyCheck) Report {
	report := Report{Provider: p.provider, EnvVar: p.envVar}

	key := strings.TrimSpace(p.apiKey)
	if key == "" {
		report.Status = StatusNotSet
		report.Message = "not set"
		return report
	}
	if p.warn != nil {
		report.Warnings = p.warn(key)
	}

	resp, err := c.client.Do(ctx, p.request(key), transport.WithRetries(0))
	if err == nil {
		report.Status = StatusOK
		report.HTTPStatus = resp.StatusCode
		report.Message = "present and usable"
		return report
	}

	report.HTTPStatus = transport.StatusOf(err)
	switch report.HTTPStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
		report.Status = StatusUnauthorized
		report.Message = "authorization failed (invalid key)"
	case http.StatusTooManyRequests:
		report.Status = StatusRateLimited
		report.Message = "rate limited"
	case 0:
		report.Status = StatusUnreachable
		report.Message = "could not reach provider API: " + err.Error()
	default:
		report.Status = StatusUnexpected
		report.Message = "unexpected response"
	}
	return report
}

// LogReports writes one log line per report
func LogReports(logger *zap.Logger, reports []Report) {
	for _, r := range reports {
		fields := []zap.Field{
			zap.String("provider", r.Provider),
			zap.String("env_var", r.EnvVar),
			zap.String("status", string(r.Status)),
		}
		if r.HTTPStatus != 0 {
			fields = append(fields, zap.Int("http_status", r.HTTPStatus))
		}
		for _, w := range r.Warnings {
			logger.Warn(r.EnvVar+": "+w, zap.String("provider", r.Provider))
		}

		switch r.Status {
		case StatusOK, StatusNotSet:
			logger.Info(r.EnvVar+": "+r.Message, fields...)
		default:
			logger.Warn(r.EnvVar+": "+r.Message, fields...)
		}
	}
}
