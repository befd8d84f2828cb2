package openai

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
	Name = "openai"

	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"

	systemPrompt = "You are an assistant that writes email text. Be concise and helpful."

	defaultMaxTokens   = 512
	defaultTemperature = 0.7
)

// Candidates lists the response fields checked for generated text, in order.
var Candidates = []string{
	"choices.0.message.content",
	"choices.0.text",
	"output_text",
}

// OpenAIAdapter implements the Provider interface for OpenAI chat completions
type OpenAIAdapter struct {
	settings providers.Settings
	client   *transport.Client
	logger   *zap.Logger
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(settings providers.Settings, httpClient *http.Client, logger *zap.Logger) *OpenAIAdapter {
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

	return &OpenAIAdapter{
		settings: settings,
		client:   transport.NewClient(httpClient, settings.Policy(), logger),
		logger:   logger,
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return Name
}

// Configured reports whether an API key is present
func (a *OpenAIAdapter) Configured() bool {
	return a.settings.Configured()
}

// Generate performs a chat completion request
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt providers.Prompt) (*providers.Generation, error) {
	if !a.Configured() {
		return nil, providers.WrapError(Name, fmt.Errorf("OPENAI_API_KEY: %w", providers.ErrMissingAPIKey))
	}

	resp, err := a.client.PostJSON(ctx, a.endpoint(), a.headers(), a.buildRequest(prompt))
	if err != nil {
		return nil, providers.WrapError(Name, err)
	}

	a.logger.Debug("chat completion received", zap.Int("attempts", resp.Attempts))
	return providers.Normalize(resp.Body, Candidates), nil
}

func (a *OpenAIAdapter) endpoint() string {
	return strings.TrimRight(a.settings.BaseURL, "/") + "/chat/completions"
}

func (a *OpenAIAdapter) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.settings.APIKey}
}

// buildRequest renders the compose prompt into the OpenAI wire format
func (a *OpenAIAdapter) buildRequest(prompt providers.Prompt) *ChatRequest {
	maxTokens := defaultMaxTokens
	temperature := defaultTemperature
	return &ChatRequest{
		Model: a.settings.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Prompt: %s\n\nContext: %s", prompt.Text, prompt.Context)},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
}

// OpenAI-specific request types

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
