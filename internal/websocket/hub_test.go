package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatagent-backend/internal/chatui"
	"chatagent-backend/internal/logging"
	"chatagent-backend/internal/monitoring"
)

type staticReplier struct {
	reply string
	err   error
}

func (s staticReplier) Ask(ctx context.Context, message string) (string, error) {
	return s.reply, s.err
}

func startHub(t *testing.T, replier chatui.Replier) (*Hub, *monitoring.Metrics, string) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	hub := NewHub(replier, "http://localhost:5173", metrics, logging.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)
	return hub, metrics, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) chatui.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e chatui.Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHub_RoundTrip(t *testing.T) {
	_, _, url := startHub(t, staticReplier{reply: "Encontré 1 producto(s): Widget"})
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": " widget "}))

	user := readEvent(t, conn)
	require.Equal(t, chatui.EventMessage, user.Type)
	assert.Equal(t, chatui.Message{From: chatui.FromUser, Text: "widget"}, *user.Message)

	busy := readEvent(t, conn)
	require.Equal(t, chatui.EventBusy, busy.Type)
	assert.True(t, *busy.Busy)

	bot := readEvent(t, conn)
	require.Equal(t, chatui.EventMessage, bot.Type)
	assert.Equal(t, chatui.Message{From: chatui.FromBot, Text: "Encontré 1 producto(s): Widget"}, *bot.Message)

	idle := readEvent(t, conn)
	require.Equal(t, chatui.EventBusy, idle.Type)
	assert.False(t, *idle.Busy)
}

func TestHub_ErrorReplyIsBotBubble(t *testing.T) {
	_, _, url := startHub(t, staticReplier{err: &chatui.ReplyError{Text: "❌ Error al consultar los productos.", StatusCode: 500}})
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "widget"}))

	readEvent(t, conn) // user bubble
	readEvent(t, conn) // busy
	bot := readEvent(t, conn)
	assert.Equal(t, chatui.Message{From: chatui.FromBot, Text: "❌ Error al consultar los productos."}, *bot.Message)
}

func TestHub_IgnoresBlankAndMalformedFrames(t *testing.T) {
	_, metrics, url := startHub(t, staticReplier{reply: "ok"})
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "   "}))
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "widget"}))

	// The first event to arrive belongs to the only real message.
	first := readEvent(t, conn)
	require.Equal(t, chatui.EventMessage, first.Type)
	assert.Equal(t, "widget", first.Message.Text)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.SessionSends.WithLabelValues("empty")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHub_SessionPerConnection(t *testing.T) {
	hub, metrics, url := startHub(t, staticReplier{reply: "ok"})

	a := dial(t, url)
	dial(t, url)

	assert.Eventually(t, func() bool { return hub.ActiveSessions() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SessionsActive))

	a.Close()

	assert.Eventually(t, func() bool { return hub.ActiveSessions() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.SessionsActive) == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	hub, _, url := startHub(t, staticReplier{reply: "ok"})
	conn := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ActiveSessions() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.ActiveSessions() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(staticReplier{}, "http://localhost:5173", nil, logging.NewNop())

	tests := []struct {
		name     string
		origin   string
		expected bool
	}{
		{"no origin", "", true},
		{"same host", "http://chat.example.com", true},
		{"configured front end", "http://localhost:5173", true},
		{"foreign site", "https://evil.example.net", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://chat.example.com/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.expected, hub.checkOrigin(req))
		})
	}
}

type gatedReplier struct {
	release chan struct{}
}

func (g gatedReplier) Ask(ctx context.Context, message string) (string, error) {
	<-g.release
	return "re: " + message, nil
}

func TestHub_BackToBackFramesKeepArrivalOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		replier := gatedReplier{release: make(chan struct{})}
		_, metrics, url := startHub(t, replier)
		conn := dial(t, url)

		require.NoError(t, conn.WriteJSON(map[string]string{"message": "first"}))
		require.NoError(t, conn.WriteJSON(map[string]string{"message": "second"}))

		user := readEvent(t, conn)
		require.Equal(t, chatui.EventMessage, user.Type)
		assert.Equal(t, chatui.Message{From: chatui.FromUser, Text: "first"}, *user.Message)

		busy := readEvent(t, conn)
		require.Equal(t, chatui.EventBusy, busy.Type)

		assert.Eventually(t, func() bool {
			return testutil.ToFloat64(metrics.SessionSends.WithLabelValues("busy")) == 1
		}, time.Second, 5*time.Millisecond)
		close(replier.release)

		bot := readEvent(t, conn)
		require.Equal(t, chatui.EventMessage, bot.Type)
		assert.Equal(t, chatui.Message{From: chatui.FromBot, Text: "re: first"}, *bot.Message)
	}
}
