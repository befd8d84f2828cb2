package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/imfrisiv/mail-backend/services/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, WrapError("openai", nil))
	})

	t.Run("upstream message is extracted", func(t *testing.T) {
		err := WrapError("openai", &transport.Error{
			StatusCode: 401,
			Attempts:   1,
			Body:       []byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`),
		})

		var perr *ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "openai", perr.Provider)
		assert.Equal(t, 401, perr.StatusCode)
		assert.Equal(t, 1, perr.Attempts)
		assert.Equal(t, "Incorrect API key provided", perr.Message)
		assert.Equal(t, 401, transport.StatusOf(err))
	})

	t.Run("default messages by status", func(t *testing.T) {
		tests := []struct {
			err  error
			want string
		}{
			{&transport.Error{StatusCode: 403}, "authorization failed (invalid API key)"},
			{&transport.Error{StatusCode: 429}, "rate-limited, try again later"},
			{&transport.Error{StatusCode: 500, Body: []byte("oops")}, "service error"},
			{&transport.Error{Err: errors.New("dial tcp: refused")}, "service unreachable"},
			{fmt.Errorf("perplexity: %w", ErrMissingAPIKey), "API key not set"},
			{context.Canceled, "request canceled"},
		}
		for _, tt := range tests {
			var perr *ProviderError
			require.True(t, errors.As(WrapError("perplexity", tt.err), &perr))
			assert.Equal(t, tt.want, perr.Message)
		}
	})

	t.Run("already wrapped is returned unchanged", func(t *testing.T) {
		orig := &ProviderError{Provider: "gemini", StatusCode: 502, Message: "x"}
		assert.Same(t, orig, WrapError("openai", orig))
	})
}

func TestSettings(t *testing.T) {
	s := Settings{APIKey: " ", Timeout: 2 * time.Second, MaxRetries: Retries(1)}
	assert.False(t, s.Configured())

	p := s.Policy()
	assert.Equal(t, 1, p.Retries)
	assert.Equal(t, 2*time.Second, p.Timeout)

	def := Settings{APIKey: "k", MaxRetries: Retries(-1)}.Policy()
	assert.True(t, Settings{APIKey: "k"}.Configured())
	assert.Equal(t, transport.DefaultRetries, def.Retries)
	assert.Equal(t, transport.DefaultTimeout, def.Timeout)

	assert.Equal(t, 0, Settings{MaxRetries: Retries(0)}.Policy().Retries)
}

func TestSettings_UnsetRetriesUseDefault(t *testing.T) {
	p := Settings{APIKey: "k"}.Policy()

	assert.Equal(t, transport.DefaultRetries, p.Retries)
	assert.Equal(t, 3, p.Retries)
	assert.Equal(t, transport.DefaultTimeout, p.Timeout)
}
