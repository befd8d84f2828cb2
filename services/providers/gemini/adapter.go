package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/imfrisiv/mail-backend/services/providers"
	"github.com/imfrisiv/mail-backend/services/transport"
)

const (
	// Name is the registry name of this provider
	Name = "gemini"

	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"

	// apiVersion is appended to the base URL by the SDK itself
	apiVersion = "v1beta"
)

// Candidates lists the response fields checked for generated text, in order.
// The SDK and REST paths share it.
var Candidates = []string{
	"candidates.0.content.parts.0.text",
	"text",
	"output_text",
	"output.0.content",
	"result",
	"generated_text",
}

// ContentGenerator is the part of the Gemini SDK the adapter depends on.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

// clientGenerator adapts *genai.Client to ContentGenerator.
type clientGenerator struct {
	client *genai.Client
}

func (g *clientGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, nil)
}

// Option configures a GeminiAdapter
type Option func(*GeminiAdapter)

// WithContentGenerator replaces the SDK client, mainly for tests.
func WithContentGenerator(g ContentGenerator) Option {
	return func(a *GeminiAdapter) {
		a.generator = g
	}
}

// GeminiAdapter implements the SDKProvider interface for Google Gemini.
// The SDK client is created on first use and shares the adapter's
// *http.Client.
type GeminiAdapter struct {
	settings   providers.Settings
	httpClient *http.Client
	client     *transport.Client
	logger     *zap.Logger

	mu        sync.Mutex
	generator ContentGenerator
}

// NewGeminiAdapter creates a new Gemini adapter
func NewGeminiAdapter(settings providers.Settings, httpClient *http.Client, logger *zap.Logger, opts ...Option) *GeminiAdapter {
	if settings.BaseURL == "" {
		settings.BaseURL = defaultBaseURL
	}
	if settings.Model == "" {
		settings.Model = defaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", Name))

	a := &GeminiAdapter{
		settings:   settings,
		httpClient: httpClient,
		client:     transport.NewClient(httpClient, settings.Policy(), logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider name
func (a *GeminiAdapter) Name() string {
	return Name
}

// Configured reports whether an API key is present
func (a *GeminiAdapter) Configured() bool {
	return a.settings.Configured()
}

// GenerateSDK calls models.generateContent through the Gen AI SDK.
// The call is retried with the same policy as the REST path.
func (a *GeminiAdapter) GenerateSDK(ctx context.Context, prompt providers.Prompt) (*providers.Generation, error) {
	if !a.Configured() {
		return nil, a.missingKey()
	}

	gen, err := a.contentGenerator(ctx)
	if err != nil {
		return nil, providers.WrapError(Name, err)
	}

	contents := genai.Text(prompt.Render())
	model := a.settings.Model

	var resp *genai.GenerateContentResponse
	attempts, err := a.client.Policy().Do(ctx, func(attemptCtx context.Context) error {
		r, err := gen.GenerateContent(attemptCtx, model, contents)
		if err != nil {
			err = sdkError(model, err)
			a.logger.Debug("sdk attempt failed", zap.Int("status", transport.StatusOf(err)), zap.Error(err))
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) {
			terr.Attempts = attempts
		}
		return nil, providers.WrapError(Name, err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, providers.WrapError(Name, fmt.Errorf("failed to encode sdk response: %w", err))
	}

	a.logger.Debug("sdk content received", zap.Int("attempts", attempts))
	return providers.Normalize(raw, Candidates), nil
}

// Generate calls the REST generateContent endpoint directly
func (a *GeminiAdapter) Generate(ctx context.Context, prompt providers.Prompt) (*providers.Generation, error) {
	if !a.Configured() {
		return nil, a.missingKey()
	}

	payload := &GenerateRequest{
		Contents: []Content{{
			Role:  "user",
			Parts: []Part{{Text: prompt.Render()}},
		}},
	}

	resp, err := a.client.PostJSON(ctx, a.endpoint(), nil, payload)
	if err != nil {
		return nil, providers.WrapError(Name, err)
	}

	a.logger.Debug("rest content received", zap.Int("attempts", resp.Attempts))
	return providers.Normalize(resp.Body, Candidates), nil
}

func (a *GeminiAdapter) missingKey() error {
	return providers.WrapError(Name, fmt.Errorf("GOOGLE_GEMINI_API_KEY: %w", providers.ErrMissingAPIKey))
}

func (a *GeminiAdapter) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(a.settings.BaseURL, "/"),
		url.PathEscape(a.settings.Model),
		url.QueryEscape(a.settings.APIKey))
}

// clientConfig builds the SDK configuration. The SDK adds the API version
// to the base URL, so it is stripped from the configured one.
func (a *GeminiAdapter) clientConfig() *genai.ClientConfig {
	base := strings.TrimSuffix(strings.TrimRight(a.settings.BaseURL, "/"), "/"+apiVersion)
	return &genai.ClientConfig{
		APIKey:     a.settings.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: a.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base + "/",
			APIVersion: apiVersion,
		},
	}
}

func (a *GeminiAdapter) contentGenerator(ctx context.Context) (ContentGenerator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generator != nil {
		return a.generator, nil
	}

	// Construction must not be bound to the request context.
	client, err := genai.NewClient(context.WithoutCancel(ctx), a.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	a.generator = &clientGenerator{client: client}
	return a.generator, nil
}

// sdkError maps an SDK failure onto a transport error so status-based
// retry and classification apply to both paths.
func sdkError(model string, err error) error {
	terr := &transport.Error{
		Method: http.MethodPost,
		URL:    "models/" + model + ":generateContent",
		Err:    err,
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		terr.StatusCode = apiErr.Code
		if terr.StatusCode == 0 {
			// plain-text error bodies only carry the HTTP status line
			code, _, _ := strings.Cut(apiErr.Status, " ")
			terr.StatusCode, _ = strconv.Atoi(code)
		}
		if apiErr.Message != "" {
			terr.Body, _ = json.Marshal(map[string]string{"message": apiErr.Message})
		}
	}
	return terr
}

// Gemini-specific request types

type GenerateRequest struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}
