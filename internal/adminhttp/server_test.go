package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosha-bot/internal/auth"
	"gosha-bot/internal/history"
	"gosha-bot/internal/storage"
)

type memRecorder struct{ events []storage.Event }

func (m *memRecorder) AppendInteraction(ev storage.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) LoadInteractions() ([]storage.Event, error) { return m.events, nil }

func newTestHandler(t *testing.T, token string) (*Handler, history.Store) {
	t.Helper()
	store := history.NewMemoryStore()
	day := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	rec := &memRecorder{events: []storage.Event{
		{Timestamp: day, ChatID: -1, UserID: 1, Kind: storage.KindText, LatencyMS: 10},
		{Timestamp: day.Add(time.Hour), ChatID: -1, UserID: 2, Kind: storage.KindSticker},
	}}
	h := NewHandler(store, rec, auth.New([]string{"boss"}), token)
	h.now = func() time.Time { return day }
	return h, store
}

func do(t *testing.T, h *Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz_NoToken(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestToken_Required(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/stats", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/stats", "secret").Code)
}

func TestStats(t *testing.T) {
	h, _ := newTestHandler(t, "")
	w := do(t, h, http.MethodGet, "/stats?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Date     string `json:"date"`
		Requests int    `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2024-01-15", body.Date)
	assert.Equal(t, 2, body.Requests)

	w = do(t, h, http.MethodGet, "/stats?date=2024-01-16&format=text", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Всего запросов: 0")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/stats?date=yesterday", "").Code)
}

func TestConversations(t *testing.T) {
	h, store := newTestHandler(t, "")
	require.NoError(t, store.Append(context.Background(), -100, history.User("Аня", "привет"), history.Assistant("здравствуй")))

	w := do(t, h, http.MethodGet, "/conversations/-100", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ChatID   int64             `json:"chat_id"`
		Messages []history.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(-100), body.ChatID)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "Аня", body.Messages[0].AuthorLabel)

	w = do(t, h, http.MethodGet, "/conversations/42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"messages":[]`))

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/conversations/abc", "").Code)

}

func TestDeleteConversation(t *testing.T) {
	h, store := newTestHandler(t, "secret")
	require.NoError(t, store.Append(context.Background(), -100, history.User("Аня", "привет")))

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodDelete, "/conversations/-100", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/conversations/-100", "secret").Code)
	msgs, _ := store.Get(context.Background(), -100)
	assert.Empty(t, msgs)
}

func TestWithoutToken_MutatingRoutesDisabled(t *testing.T) {
	h, store := newTestHandler(t, "")
	require.NoError(t, store.Append(context.Background(), -100, history.User("Аня", "привет")))

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/admins/mallory", "").Code)
	assert.False(t, h.admins.IsAdmin("mallory"))
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/admins/boss", "").Code)
	assert.True(t, h.admins.IsAdmin("boss"))
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/conversations/-100", "").Code)
	msgs, _ := store.Get(context.Background(), -100)
	assert.Len(t, msgs, 1)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/admins", "").Code)
}

func TestAdmins(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, "/admins/@Carol", "secret").Code)
	assert.True(t, h.admins.IsAdmin("carol"))

	w := do(t, h, http.MethodGet, "/admins", "secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"carol"`)
	assert.Contains(t, w.Body.String(), `"boss"`)

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/admins/carol", "secret").Code)
	assert.False(t, h.admins.IsAdmin("carol"))
}
