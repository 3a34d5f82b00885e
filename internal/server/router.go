package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/alinalabs/alina-go/internal/middleware"
)

// Handler bundles the dev server's endpoints around one history store and
// one responder.
type Handler struct {
	history    *HistoryStore
	responder  Responder
	cancels    *cancelRegistry
	replyAudio []byte
	upgrader   websocket.Upgrader
}

// New creates the dev server handler. A nil responder falls back to the
// offline echo responder.
func New(history *HistoryStore, responder Responder) *Handler {
	if responder == nil {
		responder = EchoResponder{}
	}
	return &Handler{
		history:    history,
		responder:  responder,
		cancels:    newCancelRegistry(),
		replyAudio: beepWAV(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// NewRouter wires the dev server routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", h.handleHealth)
	r.Post("/alina/voice", h.handleVoice)
	r.Post("/alina/cancel", h.handleCancel)
	r.Get("/ws/chat", h.handleChatWS)

	return r
}
