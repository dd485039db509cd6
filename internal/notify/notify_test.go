package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marginwatch/internal/events"
)

type fakeNotifier struct {
	name     string
	err      error
	received []string
}

func (f *fakeNotifier) Send(message string) error {
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, message)
	return nil
}

func (f *fakeNotifier) Name() string { return f.name }

func newTestRegistry() *Registry {
	return NewRegistry(events.NewManager(zerolog.Nop()), zerolog.Nop())
}

func TestBroadcastDeliversToAll(t *testing.T) {
	registry := newTestRegistry()
	a := &fakeNotifier{name: "a"}
	b := &fakeNotifier{name: "b"}
	registry.Register(a)
	registry.Register(b)

	delivered := registry.Broadcast("hello")
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"hello"}, a.received)
	assert.Equal(t, []string{"hello"}, b.received)
}

func TestBroadcastDropsFailingDestination(t *testing.T) {
	registry := newTestRegistry()
	good := &fakeNotifier{name: "good"}
	bad := &fakeNotifier{name: "bad", err: fmt.Errorf("unreachable")}
	registry.Register(bad)
	registry.Register(good)

	// The failing destination does not block the healthy one
	delivered := registry.Broadcast("first")
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"first"}, good.received)
	assert.Equal(t, 1, registry.Len())

	// Dropped destination no longer receives anything
	delivered = registry.Broadcast("second")
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"first", "second"}, good.received)
}

func TestBroadcastEmptyRegistry(t *testing.T) {
	registry := newTestRegistry()
	assert.Zero(t, registry.Broadcast("nobody home"))
}

func TestFormatAlert(t *testing.T) {
	msg := FormatAlert("AAPL", 80, 100, 20)
	assert.Contains(t, msg, "AAPL")
	assert.Contains(t, msg, "$80.00")
	assert.Contains(t, msg, "$100.00")
	assert.Contains(t, msg, "20.0%")
}

func TestFormatAlertEscapesTicker(t *testing.T) {
	msg := FormatAlert("A<B>&C", 1, 2, 50)
	assert.Contains(t, msg, "A&lt;B&gt;&amp;C")
	assert.NotContains(t, msg, "A<B>")
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, jsonDecode(r, &gotBody))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("token123", "chat456")
	n.baseURL = server.URL

	require.NoError(t, n.Send("hello"))
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
	assert.Equal(t, "HTML", gotBody["parse_mode"])
}

func TestTelegramSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("token", "missing")
	n.baseURL = server.URL

	err := n.Send("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSendUnconfigured(t *testing.T) {
	n := NewTelegramNotifier("", "")
	assert.Error(t, n.Send("hello"))
}

func jsonDecode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
