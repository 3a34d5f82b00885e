package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
)

// voiceReply mirrors the production voice endpoint's JSON contract.
type voiceReply struct {
	Transcript  string  `json:"transcript"`
	Answer      string  `json:"answer"`
	AudioBase64 string  `json:"audio_base64"`
	AudioMIME   string  `json:"audio_mime,omitempty"`
	SessionID   string  `json:"session_id"`
	History     []Entry `json:"history,omitempty"`
}

// cancelRegistry tracks sessions whose in-flight turn was cancelled.
type cancelRegistry struct {
	mu     sync.Mutex
	active map[string]bool
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{active: make(map[string]bool)}
}

// begin registers a turn so a later cancel can reach it.
func (c *cancelRegistry) begin(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[sessionID] = false
}

// cancel flags an active turn; it reports whether one existed.
func (c *cancelRegistry) cancel(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[sessionID]; !ok {
		return false
	}
	c.active[sessionID] = true
	return true
}

func (c *cancelRegistry) cancelled(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[sessionID]
}

func (c *cancelRegistry) end(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, sessionID)
}

// handleVoice runs one voice turn: accept the multipart upload, log the
// stand-in transcript, answer, and attach the beep audio.
func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		// Some demo instances upload under "file" instead.
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audioBytes, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read audio")
		return
	}
	if len(audioBytes) == 0 {
		respondError(w, http.StatusBadRequest, "Empty audio")
		return
	}

	sessionID := h.history.Ensure(r.FormValue("session_id"))
	h.cancels.begin(sessionID)
	defer h.cancels.end(sessionID)

	mime := header.Header.Get("Content-Type")
	log.Printf("[voice] turn session=%s file=%s mime=%s bytes=%d lang=%s",
		sessionID, header.Filename, mime, len(audioBytes), r.FormValue("lang"))

	// No STT locally; stand in for the recognized text.
	transcript := fmt.Sprintf("[voice note, %d bytes]", len(audioBytes))
	if err := h.history.Append(sessionID, "user", transcript); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reply := voiceReply{Transcript: transcript, SessionID: sessionID}
	if h.cancels.cancelled(sessionID) {
		respondJSON(w, http.StatusOK, reply)
		return
	}

	history, err := h.history.History(sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	answer, err := h.responder.Answer(r.Context(), history, transcript)
	if err != nil {
		log.Printf("[voice] responder error: %v", err)
		respondError(w, http.StatusInternalServerError, "assistant failed: "+err.Error())
		return
	}
	if err := h.history.Append(sessionID, "assistant", answer); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reply.Answer = answer

	if h.cancels.cancelled(sessionID) {
		respondJSON(w, http.StatusOK, reply)
		return
	}

	reply.AudioBase64 = base64.StdEncoding.EncodeToString(h.replyAudio)
	reply.AudioMIME = "audio/wav"
	reply.History, _ = h.history.History(sessionID)

	respondJSON(w, http.StatusOK, reply)
}

// handleCancel flags an in-flight turn for the given session, mirroring
// the production cancel endpoint.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if h.cancels.cancel(sessionID) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "not_found"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "alina-dev"})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}
