package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chatagent-backend/internal/logging"
	"chatagent-backend/internal/middleware"
	"chatagent-backend/internal/models"
	"chatagent-backend/internal/monitoring"
	"chatagent-backend/internal/services"
)

const (
	ReplyMethodNotAllowed = "method not allowed"
	ReplyInvalidMessage   = "❌ El mensaje es obligatorio."
	ReplyConfigError      = "❌ Error de configuración del servidor."
	ReplySearchError      = "❌ Error al consultar los productos."
)

type chatReplier interface {
	Reply(ctx context.Context, baseURL, message string) (string, error)
}

type ChatHandler struct {
	replier      chatReplier
	backendURL   string
	maxBodyBytes int64
	metrics      *monitoring.Metrics
	logger       *logging.Logger
}

func NewChatHandler(
	replier chatReplier,
	backendURL string,
	maxBodyBytes int64,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
) *ChatHandler {
	return &ChatHandler{
		replier:      replier,
		backendURL:   backendURL,
		maxBodyBytes: maxBodyBytes,
		metrics:      metrics,
		logger:       logger,
	}
}

// Chat handles /api/chat. It is mounted for every method so it can answer
// non-POST requests with a JSON reply instead of the router's plain 405.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.reply(w, http.StatusMethodNotAllowed, ReplyMethodNotAllowed)
		return
	}

	message, ok := h.decodeMessage(w, r)
	if !ok {
		h.reply(w, http.StatusBadRequest, ReplyInvalidMessage)
		return
	}

	log := h.logger.ForRequest(middleware.GetRequestID(r.Context()))

	if h.backendURL == "" {
		log.Error("BACKEND_URL is not configured; cannot reach the product service")
		h.reply(w, http.StatusInternalServerError, ReplyConfigError)
		return
	}

	// Once sent, the search runs to completion even if the caller goes away.
	ctx := context.WithoutCancel(r.Context())

	reply, err := h.replier.Reply(ctx, h.backendURL, message)
	if err != nil {
		var upstreamErr *services.UpstreamError
		if errors.As(err, &upstreamErr) {
			log.Error("Product service returned an error",
				zap.Int("status", upstreamErr.StatusCode),
				zap.String("body", upstreamErr.Body),
			)
		} else {
			log.Error("Product search failed", zap.Error(err))
		}
		h.reply(w, http.StatusInternalServerError, ReplySearchError)
		return
	}

	h.reply(w, http.StatusOK, reply)
}

// decodeMessage returns the trimmed message. A body that is not JSON, lacks
// "message", carries a non-string "message" or only whitespace is rejected.
func (h *ChatHandler) decodeMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", false
	}
	if req.Message == nil {
		return "", false
	}

	message := strings.TrimSpace(*req.Message)
	if message == "" {
		return "", false
	}
	return message, true
}

func (h *ChatHandler) reply(w http.ResponseWriter, status int, text string) {
	if h.metrics != nil {
		h.metrics.ChatReplies.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	writeJSON(w, status, models.ChatResponse{Reply: text})
}
