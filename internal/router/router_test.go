package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatagent-backend/internal/chatui"
	"chatagent-backend/internal/handlers"
	"chatagent-backend/internal/logging"
	"chatagent-backend/internal/models"
	"chatagent-backend/internal/monitoring"
	"chatagent-backend/internal/services"
	"chatagent-backend/internal/web"
	"chatagent-backend/internal/websocket"
)

// newStack wires the full application against a fake Product Service and
// returns the base URL of the running server.
func newStack(t *testing.T, catalogBody string) string {
	t.Helper()

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(catalogBody))
	}))
	t.Cleanup(catalog.Close)

	var app http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := logging.NewNop()
	metrics := monitoring.NewMetrics()
	search := services.NewSearchService(services.NewCatalogClient(0), metrics, logger)
	chatHandler := handlers.NewChatHandler(search, catalog.URL, 1<<20, metrics, logger)
	hub := websocket.NewHub(chatui.NewProxyClient(srv.URL+"/api/chat"), "", metrics, logger)
	t.Cleanup(hub.Close)

	app = New(chatHandler, web.NewHandler(web.DefaultPage(), logger), hub, metrics, logger, "http://localhost:5173")
	return srv.URL
}

func TestRouter_ChatEndpoint(t *testing.T) {
	base := newStack(t, `[{"id":1,"name":"Widget"},{"id":2,"name":"Gadget"}]`)

	resp, err := http.Post(base+"/api/chat", "application/json", strings.NewReader(`{"message":"widget"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body models.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Encontré 2 producto(s): Widget, Gadget", body.Reply)
}

func TestRouter_ChatEndpointRejectsGet(t *testing.T) {
	base := newStack(t, `[]`)

	resp, err := http.Get(base + "/api/chat")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	var body models.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, handlers.ReplyMethodNotAllowed, body.Reply)
}

func TestRouter_CORSPreflight(t *testing.T) {
	base := newStack(t, `[]`)

	req, _ := http.NewRequest(http.MethodOptions, base+"/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEqual(t, http.StatusMethodNotAllowed, resp.StatusCode, "preflight is answered by CORS")
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	// Without preflight headers OPTIONS is an ordinary non-POST request.
	plain, _ := http.NewRequest(http.MethodOptions, base+"/api/chat", nil)
	resp2, err := http.DefaultClient.Do(plain)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestRouter_AmbientRoutes(t *testing.T) {
	base := newStack(t, `[]`)

	tests := []struct {
		path     string
		contains string
	}{
		{"/health", `"status":"ok"`},
		{"/", "Chat con el Agente IA"},
		{"/static/chat.js", "WebSocket"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get(base + tc.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			data, _ := io.ReadAll(resp.Body)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(data), tc.contains)
		})
	}

	// Metrics come last so the requests above are counted.
	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), `chatagent_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouter_ChatUIEndToEnd(t *testing.T) {
	base := newStack(t, `[]`)

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "unicornio"}))

	var bot *chatui.Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for bot == nil {
		var e chatui.Event
		require.NoError(t, conn.ReadJSON(&e))
		if e.Type == chatui.EventMessage && e.Message.From == chatui.FromBot {
			bot = e.Message
		}
	}
	assert.Equal(t, services.NoMatchesReply, bot.Text)
}
