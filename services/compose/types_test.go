package compose

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalStatus(t *testing.T) {
	tests := []struct {
		name     string
		failures []Failure
		want     int
	}{
		{
			name: "empty list",
			want: http.StatusServiceUnavailable,
		},
		{
			name: "forbidden wins over rate limit",
			failures: []Failure{
				{Provider: "gemini", Status: http.StatusTooManyRequests, Reason: ReasonRateLimit},
				{Provider: "openai", Status: http.StatusForbidden, Reason: ReasonAuth},
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "rate limit wins over upstream",
			failures: []Failure{
				{Provider: "gemini", Status: http.StatusBadGateway, Reason: ReasonUpstream},
				{Provider: "openai", Status: http.StatusTooManyRequests, Reason: ReasonRateLimit},
			},
			want: http.StatusTooManyRequests,
		},
		{
			name: "network and empty responses",
			failures: []Failure{
				{Provider: "gemini", Reason: ReasonNetwork},
				{Provider: "openai", Reason: ReasonEmptyResponse},
			},
			want: http.StatusBadGateway,
		},
		{
			name:     "configuration only",
			failures: []Failure{{Provider: "perplexity", Reason: ReasonConfiguration}},
			want:     http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FinalStatus(tt.failures))
			assert.Equal(t, tt.want, (&AggregateError{Failures: tt.failures}).HTTPStatus())
		})
	}
}

func TestAggregateError_Error(t *testing.T) {
	err := &AggregateError{Failures: []Failure{
		{Provider: "gemini", Status: http.StatusUnauthorized, Reason: ReasonAuth},
		{Provider: "openai", Reason: ReasonNetwork},
	}}

	assert.Equal(t, "all providers failed (gemini: auth, openai: network)", err.Error())
}
