package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(retries int) *Client {
	return NewClient(nil, Policy{
		Retries: retries,
		Timeout: time.Second,
		Backoff: NoBackoff,
	}, zap.NewNop())
}

func TestClientPostJSON(t *testing.T) {
	t.Run("sends payload and headers", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello", body["prompt"])

			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		resp, err := newTestClient(3).PostJSON(context.Background(), server.URL,
			map[string]string{"Authorization": "Bearer secret"},
			map[string]string{"prompt": "hello"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
		assert.Equal(t, 1, resp.Attempts)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("retries 5xx and resends body", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"n":1}`, string(body))
			if n < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		resp, err := newTestClient(3).PostJSON(context.Background(), server.URL, nil, map[string]int{"n": 1})
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Attempts)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("400 is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad"}`))
		}))
		defer server.Close()

		_, err := newTestClient(3).PostJSON(context.Background(), server.URL, nil, map[string]string{})
		require.Error(t, err)

		var terr *Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
		assert.Equal(t, 1, terr.Attempts)
		assert.JSONEq(t, `{"error":"bad"}`, string(terr.Body))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("429 is retried until exhausted", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(2).PostJSON(context.Background(), server.URL, nil, map[string]string{})
		require.Error(t, err)
		assert.Equal(t, http.StatusTooManyRequests, StatusOf(err))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("network failure has no status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := newTestClient(1).PostJSON(context.Background(), url, nil, map[string]string{})
		require.Error(t, err)

		var terr *Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, 0, terr.StatusCode)
		assert.Equal(t, 2, terr.Attempts)
	})

	t.Run("per-call retry override", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(3).PostJSON(context.Background(), server.URL, nil, map[string]string{}, WithRetries(0))
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestClientDoGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "abc", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	resp, err := newTestClient(0).Do(context.Background(), Request{URL: server.URL + "/models?key=abc"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(resp.Body))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/v1/models?key=REDACTED", redactURL("https://example.com/v1/models?key=secret"))
	assert.Equal(t, "https://example.com/v1/chat", redactURL("https://example.com/v1/chat"))
}

func TestClientNetworkErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(0).Do(context.Background(), Request{URL: url + "/models?key=secret"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "key=REDACTED")
}
