package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"chatagent-backend/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Page holds the copy rendered into the chat page.
type Page struct {
	Title       string
	EmptyHint   string
	Placeholder string
	SendLabel   string
	BusyLabel   string
	SocketPath  string
}

func DefaultPage() Page {
	return Page{
		Title:       "🧠 Chat con el Agente IA",
		EmptyHint:   "Escribe un mensaje para comenzar...",
		Placeholder: "Escribí tu mensaje...",
		SendLabel:   "Enviar",
		BusyLabel:   "Enviando...",
		SocketPath:  "/ws",
	}
}

type Handler struct {
	page   Page
	static http.Handler
	logger *logging.Logger
}

func NewHandler(page Page, logger *logging.Logger) *Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return &Handler{
		page:   page,
		static: http.StripPrefix("/static/", http.FileServer(http.FS(sub))),
		logger: logger,
	}
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "index.html", h.page); err != nil {
		h.logger.Error("Failed to render chat page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	h.static.ServeHTTP(w, r)
}
