package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imfrisiv/mail-backend/services/transport"
)

// ErrMissingAPIKey is returned before any network attempt when a provider
// is invoked without credentials.
var ErrMissingAPIKey = errors.New("API key not set")

// Provider is a text-generation backend reached over raw HTTP.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "perplexity", "gemini")
	Name() string

	// Configured reports whether credentials are present
	Configured() bool

	// Generate performs one logical generation request over the REST path
	Generate(ctx context.Context, prompt Prompt) (*Generation, error)
}

// SDKProvider is implemented by providers that also expose an SDK-style
// client. The SDK path is attempted before Generate.
type SDKProvider interface {
	Provider

	// GenerateSDK performs the request through the provider SDK
	GenerateSDK(ctx context.Context, prompt Prompt) (*Generation, error)
}

// Prompt is the user input handed to every provider.
type Prompt struct {
	// Text is the instruction the user typed
	Text string

	// Context is optional surrounding material (e.g. the email being replied to)
	Context string
}

// Render joins prompt and context the way every provider receives them.
func (p Prompt) Render() string {
	return fmt.Sprintf("%s\n\nContext: %s", p.Text, p.Context)
}

// Generation is a provider response normalized to {text, raw}.
type Generation struct {
	// Text is the extracted generated text; empty when no candidate matched
	Text string `json:"text"`

	// Raw is the provider payload the text was extracted from
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Settings holds the static, per-provider configuration shared by adapters.
type Settings struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Model identifier sent to the provider
	Model string

	// Timeout bounds a single attempt
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Nil means transport.DefaultRetries.
	MaxRetries *int

	// Backoff overrides the delay between attempts (nil uses the default)
	Backoff transport.BackoffFunc
}

// Policy converts the settings into a transport retry policy.
func (s Settings) Policy() transport.Policy {
	p := transport.DefaultPolicy()
	if s.Timeout > 0 {
		p.Timeout = s.Timeout
	}
	if s.MaxRetries != nil && *s.MaxRetries >= 0 {
		p.Retries = *s.MaxRetries
	}
	if s.Backoff != nil {
		p.Backoff = s.Backoff
	}
	return p
}

// Retries returns a MaxRetries value for n retries.
func Retries(n int) *int {
	return &n
}

// Configured reports whether an API key is present.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// ProviderError is a failed provider call carrying the upstream status.
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// StatusCode is the HTTP status code (0 when no response was received)
	StatusCode int

	// Message is a short description safe to return to clients
	Message string

	// Attempts made before giving up
	Attempts int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the upstream status code
func (e *ProviderError) HTTPStatus() int {
	return e.StatusCode
}

// WrapError converts a transport failure into a ProviderError, extracting
// the provider's own error message from the response body when possible.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}

	pe := &ProviderError{
		Provider:   provider,
		StatusCode: transport.StatusOf(err),
		Cause:      err,
	}

	var terr *transport.Error
	if errors.As(err, &terr) {
		pe.Attempts = terr.Attempts
		if msg := upstreamMessage(terr.Body); msg != "" {
			pe.Message = msg
		}
	}
	if pe.Message == "" {
		pe.Message = defaultMessage(pe.StatusCode, err)
	}
	return pe
}

func defaultMessage(status int, err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "API key not set"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	case status == 401 || status == 403:
		return "authorization failed (invalid API key)"
	case status == 429:
		return "rate-limited, try again later"
	case status == 0:
		return "service unreachable"
	default:
		return "service error"
	}
}

// upstreamMessage pulls {"error":{"message":...}} or {"error":"..."} out of
// an error body.
func upstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return ExtractText(body, []string{"error.message", "error", "message", "detail"})
}
