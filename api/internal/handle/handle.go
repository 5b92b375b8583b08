package handle

import (
	"encoding/json"
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"neuro-scan/api/internal/capture"
	"neuro-scan/api/internal/catalog"
	"neuro-scan/api/internal/chat"
	"neuro-scan/api/internal/overlay"
	"neuro-scan/api/internal/session"
)

type Deps struct {
	Controller   *capture.Controller
	Board        *overlay.Board
	Snapshot     *session.Recognition
	Catalog      *catalog.Provider
	Conversation *chat.Conversation
	Backend      chat.Backend
	Diagram      image.Image
	Icons        overlay.IconLoader
	Hub          *Hub
}

type Handle struct {
	Deps
}

func New(d Deps) *Handle {
	return &Handle{Deps: d}
}

func (h *Handle) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/scan", h.Scan)
		r.Post("/recognize", h.Recognize)
		r.Get("/overlay", h.Overlay)
		r.Get("/overlay.png", h.OverlayPNG)
		r.Get("/catalog", h.ListCatalog)
		r.Post("/catalog/refresh", h.RefreshCatalog)
		r.Post("/chat", h.Chat)
		r.Get("/conversation", h.Transcript)
		r.Post("/conversation", h.Send)
		r.Delete("/conversation", h.ResetConversation)
		r.Post("/conversation/settings", h.Settings)
		if h.Hub != nil {
			r.Get("/events", h.Hub.ServeWS)
		}
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// requestDeadline: X-Request-Timeout (сек) или ?timeoutSec=, иначе def.
func requestDeadline(r *http.Request, def time.Duration) time.Duration {
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return def
}
