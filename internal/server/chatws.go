package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
)

// handleChatWS serves the streaming text-chat endpoint: raw trimmed text
// frames in, raw text frames out, one reply per inbound frame.
func (h *Handler) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[chatws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := h.history.Ensure("")
	log.Printf("[chatws] new connection session=%s", sessionID)

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[chatws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if msgType != websocket.TextMessage {
			continue
		}

		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}

		if err := h.history.Append(sessionID, "user", text); err != nil {
			log.Printf("[chatws] append failed: %v", err)
			return
		}

		history, err := h.history.History(sessionID)
		if err != nil {
			log.Printf("[chatws] history failed: %v", err)
			return
		}

		answer, err := h.responder.Answer(r.Context(), history, text)
		if err != nil {
			log.Printf("[chatws] responder error: %v", err)
			answer = "Alina (dev): assistant unavailable"
		} else if err := h.history.Append(sessionID, "assistant", answer); err != nil {
			log.Printf("[chatws] append failed: %v", err)
			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
			log.Printf("[chatws] write failed: %v", err)
			return
		}
	}
}

func (h *Handler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
