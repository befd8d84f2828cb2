package compose

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Request is a compose request from the mail client
type Request struct {
	Prompt  string `json:"prompt" validate:"notblank"`
	Context string `json:"context,omitempty"`

	// RequestID correlates log lines; not part of the wire format
	RequestID string `json:"-"`
}

// Result is the first successful provider response
type Result struct {
	Provider string          `json:"provider"`
	Text     string          `json:"text"`
	Raw      json.RawMessage `json:"-"`
	Attempts []Failure       `json:"-"` // failures recorded before the success
}

// Reason classifies a provider failure
type Reason string

const (
	ReasonAuth          Reason = "auth"
	ReasonRateLimit     Reason = "rate-limit"
	ReasonUpstream      Reason = "upstream"
	ReasonNetwork       Reason = "network"
	ReasonEmptyResponse Reason = "empty-response"
	ReasonConfiguration Reason = "configuration"
	ReasonCanceled      Reason = "canceled"
)

// Failure records one provider that did not produce text.
// Status is zero when no HTTP response was received.
type Failure struct {
	Provider string `json:"provider"`
	Status   int    `json:"status,omitempty"`
	Reason   Reason `json:"reason"`
	Message  string `json:"message"`
}

// AggregateError is returned when every provider in the queue failed.
// Failures are in attempt order.
type AggregateError struct {
	Failures []Failure
}

// Error implements the error interface
func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Provider, f.Reason))
	}
	return fmt.Sprintf("all providers failed (%s)", strings.Join(parts, ", "))
}

// HTTPStatus returns the status the compose endpoint answers with
func (e *AggregateError) HTTPStatus() int {
	return FinalStatus(e.Failures)
}

// FinalStatus derives one HTTP status from a failure list.
// Authorization failures win over rate limits, which win over everything
// else. An empty list means nothing could be tried.
func FinalStatus(failures []Failure) int {
	if len(failures) == 0 {
		return http.StatusServiceUnavailable
	}

	rateLimited := false
	for _, f := range failures {
		switch f.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return http.StatusUnauthorized
		case http.StatusTooManyRequests:
			rateLimited = true
		}
	}
	if rateLimited {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

// Outcome labels for the compose request counter
const (
	outcomeSuccess      = "success"
	outcomeInvalid      = "invalid"
	outcomeUnconfigured = "unconfigured"
	outcomeFailed       = "failed"
	outcomeCanceled     = "canceled"
)
