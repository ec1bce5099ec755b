package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func newWebhookServer(t *testing.T) (*httptest.Server, *webhookRecorder) {
	recorder := &webhookRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))

		recorder.mu.Lock()
		recorder.payloads = append(recorder.payloads, payload)
		recorder.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, recorder
}

func TestWrapBackgroundTask(t *testing.T) {
	t.Run("alerts once per distinct error within cooldown", func(t *testing.T) {
		server, recorder := newWebhookServer(t)
		m := NewErrorAlertMiddleware(SlackAlertConfig{WebhookURL: server.URL, Environment: "dev", AppName: "mentionguard"})

		failing := m.WrapBackgroundTask("monitoring cycle guild-1", func() error {
			return errors.New("snapshot failed")
		})

		assert.Error(t, failing())
		assert.Error(t, failing())

		require.Eventually(t, func() bool { return recorder.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, recorder.count())

		recorder.mu.Lock()
		text, _ := recorder.payloads[0]["text"].(string)
		recorder.mu.Unlock()
		assert.Contains(t, text, "[dev] [mentionguard] Error Alert")
		assert.Contains(t, text, "snapshot failed")
	})

	t.Run("successful task sends nothing", func(t *testing.T) {
		server, recorder := newWebhookServer(t)
		m := NewErrorAlertMiddleware(SlackAlertConfig{WebhookURL: server.URL, AppName: "mentionguard"})

		assert.NoError(t, m.WrapBackgroundTask("noop", func() error { return nil })())

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 0, recorder.count())
	})

	t.Run("panics are recovered and alerted", func(t *testing.T) {
		server, recorder := newWebhookServer(t)
		m := NewErrorAlertMiddleware(SlackAlertConfig{WebhookURL: server.URL, AppName: "mentionguard"})

		assert.NotPanics(t, func() {
			_ = m.WrapBackgroundTask("boom", func() error { panic("bad state") })()
		})

		require.Eventually(t, func() bool { return recorder.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestHTTPMiddleware_RecoversPanics(t *testing.T) {
	m := NewErrorAlertMiddleware(SlackAlertConfig{AppName: "mentionguard"})
	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	})
}
