package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/shiftalert/internal/command"
	"github.com/amishk599/shiftalert/internal/scheduler"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	updates []command.Update
	err     error
}

func (r *recordingSubmitter) Submit(u command.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return r.err
}

type fakeRegistrar struct {
	url    string
	secret string
	err    error
}

func (f *fakeRegistrar) SetWebhook(publicURL, secret string) error {
	f.url, f.secret = publicURL, secret
	return f.err
}

type fixedState scheduler.State

func (s fixedState) State() scheduler.State { return scheduler.State(s) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(opts Options) (*Server, *recordingSubmitter, *fakeRegistrar) {
	gin.SetMode(gin.TestMode)
	sub := &recordingSubmitter{}
	reg := &fakeRegistrar{}
	s := New(opts, sub, reg, fixedState(scheduler.Bursting), discardLogger())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC) }
	return s, sub, reg
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	s.Handler().ServeHTTP(w, req)
	return w
}

const messageUpdate = `{"update_id":1,"message":{"message_id":5,"chat":{"id":12345,"type":"private"},"text":"job"}}`

func TestWebhook_ValidUpdateDispatches(t *testing.T) {
	s, sub, _ := newTestServer(Options{Token: "123:abc", Secret: "s3cret"})

	w := do(s, http.MethodPost, "/webhook/123:abc", messageUpdate, map[string]string{SecretHeader: "s3cret"})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sub.updates, 1)
	assert.Equal(t, command.Update{ChatID: 12345, Text: "job"}, sub.updates[0])
}

func TestWebhook_EditedMessage(t *testing.T) {
	s, sub, _ := newTestServer(Options{Token: "tok"})
	body := `{"update_id":2,"edited_message":{"message_id":6,"chat":{"id":99,"type":"private"},"text":"/help"}}`

	w := do(s, http.MethodPost, "/webhook/tok", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sub.updates, 1)
	assert.Equal(t, int64(99), sub.updates[0].ChatID)
	assert.Equal(t, "/help", sub.updates[0].Text)
}

func TestWebhook_WrongTokenIs404(t *testing.T) {
	s, sub, _ := newTestServer(Options{Token: "tok"})

	w := do(s, http.MethodPost, "/webhook/other", messageUpdate, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, sub.updates)
}

func TestWebhook_WrongSecretIs401(t *testing.T) {
	s, sub, _ := newTestServer(Options{Token: "tok", Secret: "s3cret"})

	for _, hdr := range []map[string]string{nil, {SecretHeader: "nope"}} {
		w := do(s, http.MethodPost, "/webhook/tok", messageUpdate, hdr)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	assert.Empty(t, sub.updates)
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	s, sub, _ := newTestServer(Options{Token: "tok"})

	cases := []string{
		`not json`,
		``,
		`{"update_id":3}`,
		`{"update_id":4,"message":{"message_id":1,"text":"job"}}`,
	}
	for _, body := range cases {
		w := do(s, http.MethodPost, "/webhook/tok", body, nil)
		assert.Equal(t, http.StatusOK, w.Code, "body %q", body)
	}
	assert.Empty(t, sub.updates)

	sub.err = command.ErrQueueFull
	w := do(s, http.MethodPost, "/webhook/tok", messageUpdate, nil)
	assert.Equal(t, http.StatusOK, w.Code, "a full queue still acknowledges")
}

func TestRootAndHealth(t *testing.T) {
	s, _, _ := newTestServer(Options{Token: "tok"})

	w := do(s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = do(s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "2026-03-01T23:00:00Z", body["time"])
	assert.Equal(t, "bursting", body["state"])
}

func TestSetupWebhook(t *testing.T) {
	t.Run("missing base URL", func(t *testing.T) {
		s, _, reg := newTestServer(Options{Token: "tok"})
		w := do(s, http.MethodGet, "/setup-webhook", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, reg.url)
	})

	t.Run("registers", func(t *testing.T) {
		s, _, reg := newTestServer(Options{Token: "tok", Secret: "s", BaseURL: "https://bot.example.com/"})
		w := do(s, http.MethodGet, "/setup-webhook", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "https://bot.example.com/webhook/tok", body["url"])
		assert.Equal(t, "https://bot.example.com/webhook/tok", reg.url)
		assert.Equal(t, "s", reg.secret)
	})

	t.Run("registration fails", func(t *testing.T) {
		s, _, reg := newTestServer(Options{Token: "tok", BaseURL: "https://bot.example.com"})
		reg.err = errors.New("telegram: bad webhook (400)")
		w := do(s, http.MethodGet, "/setup-webhook", "", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "bad webhook")
	})
}
