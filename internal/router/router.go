package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chatagent-backend/internal/handlers"
	"chatagent-backend/internal/logging"
	"chatagent-backend/internal/middleware"
	"chatagent-backend/internal/monitoring"
	"chatagent-backend/internal/web"
	"chatagent-backend/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	webHandler *web.Handler,
	wsHub *websocket.Hub,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// ──── Chat API ────
	// Every method reaches the handler; it answers 405 itself.
	r.HandleFunc("/api/chat", chatHandler.Chat)

	// ──── Chat UI ────
	r.Get("/ws", wsHub.HandleWebSocket)
	r.Get("/", webHandler.Index)
	r.Get("/static/*", webHandler.Static)

	return r
}
