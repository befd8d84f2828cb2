package perplexity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/imfrisiv/mail-backend/services/providers"
	"github.com/imfrisiv/mail-backend/services/transport"
	"go.uber.org/zap"
)

const (
	// Name is the registry name of this provider
	Name = "perplexity"

	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar"
)

// Candidates lists the response fields checked for generated text, in order.
// Perplexity has shipped several response shapes; the chat completion shape
// comes first.
var Candidates = []string{
	"choices.0.message.content",
	"results.0.text",
	"text",
	"answer",
	"response",
	"summary",
}

// PerplexityAdapter implements the Provider interface for Perplexity
type PerplexityAdapter struct {
	settings providers.Settings
	client   *transport.Client
	logger   *zap.Logger
}

// NewPerplexityAdapter creates a new Perplexity adapter
func NewPerplexityAdapter(settings providers.Settings, httpClient *http.Client, logger *zap.Logger) *PerplexityAdapter {
	if settings.BaseURL == "" {
		settings.BaseURL = defaultBaseURL
	}
	if settings.Model == "" {
		settings.Model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", Name))

	return &PerplexityAdapter{
		settings: settings,
		client:   transport.NewClient(httpClient, settings.Policy(), logger),
		logger:   logger,
	}
}

// Name returns the provider name
func (a *PerplexityAdapter) Name() string {
	return Name
}

// Configured reports whether an API key is present
func (a *PerplexityAdapter) Configured() bool {
	return a.settings.Configured()
}

// Generate sends the rendered prompt as a single user message
func (a *PerplexityAdapter) Generate(ctx context.Context, prompt providers.Prompt) (*providers.Generation, error) {
	if !a.Configured() {
		return nil, providers.WrapError(Name, fmt.Errorf("PERPLEXITY_API_KEY: %w", providers.ErrMissingAPIKey))
	}

	payload := &ChatRequest{
		Model:    a.settings.Model,
		Messages: []Message{{Role: "user", Content: prompt.Render()}},
	}

	resp, err := a.client.PostJSON(ctx, a.endpoint(), map[string]string{
		"Authorization": "Bearer " + a.settings.APIKey,
	}, payload)
	if err != nil {
		return nil, providers.WrapError(Name, err)
	}

	a.logger.Debug("chat completion received", zap.Int("attempts", resp.Attempts))
	return providers.Normalize(resp.Body, Candidates), nil
}

func (a *PerplexityAdapter) endpoint() string {
	return strings.TrimRight(a.settings.BaseURL, "/") + "/chat/completions"
}

// Perplexity-specific request types

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
