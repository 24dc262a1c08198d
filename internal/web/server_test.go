package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baysumehmet/botdeck/internal/bot"
)

// stubController records commands for assertions.
type stubController struct {
	mu          sync.Mutex
	connects    []string
	disconnects []string
	chats       []string
	identities  []string
}

func (c *stubController) Connect(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects = append(c.connects, username)
	return nil
}

func (c *stubController) Disconnect(username string, manual bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects = append(c.disconnects, username)
}

func (c *stubController) SendChat(username, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append(c.chats, username+":"+message)
	return nil
}

func (c *stubController) RunScript(_ context.Context, username string) error { return nil }

func (c *stubController) Identities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identities
}

func TestHealthz(t *testing.T) {
	srv := NewServer(Config{Token: "secret"}, NewHub(), &stubController{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
}

func TestBotsRequiresToken(t *testing.T) {
	ctrl := &stubController{identities: []string{"alpha", "beta"}}
	srv := NewServer(Config{Token: "secret"}, NewHub(), ctrl)

	tests := []struct {
		name   string
		tweak  func(r *http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}, http.StatusUnauthorized},
		{"bearer token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer secret")
		}, http.StatusOK},
		{"query token", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", "secret")
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bots", nil)
			tt.tweak(req)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestBotsListsIdentities(t *testing.T) {
	ctrl := &stubController{identities: []string{"alpha", "beta"}}
	srv := NewServer(Config{}, NewHub(), ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/bots", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Bots []string `json:"bots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"alpha", "beta"}, body.Bots)
}

func TestBotsEmptyListIsArray(t *testing.T) {
	srv := NewServer(Config{}, NewHub(), &stubController{})

	req := httptest.NewRequest(http.MethodGet, "/api/bots", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bots":[]}`, rec.Body.String())
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()
	require.Equal(t, 2, hub.Subscribers())

	ev := bot.Event{Identity: "bot1", Type: bot.EventLogin}
	hub.Publish(ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()

	for i := 0; i < hubBuffer+10; i++ {
		hub.Publish(bot.Event{Identity: "bot1", Type: bot.EventInfo})
	}
	assert.Len(t, ch, hubBuffer)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())

	// Double unsubscribe must not panic on the already-closed channel.
	hub.Unsubscribe(ch)
	hub.Publish(bot.Event{Identity: "bot1", Type: bot.EventInfo})
}
