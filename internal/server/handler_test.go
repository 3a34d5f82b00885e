package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHandler() *Handler {
	return New(NewHistoryStore(), EchoResponder{})
}

func multipartBody(t *testing.T, field string, audio []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "voice.webm")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		t.Fatalf("write audio err: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("WriteField err: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}
	return body, writer.FormDataContentType()
}

func postVoice(t *testing.T, router http.Handler, field string, audio []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, audio, fields)
	req := httptest.NewRequest(http.MethodPost, "/alina/voice", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestVoiceTurnReturnsStructuredReply(t *testing.T) {
	router := NewRouter(newTestHandler())

	rr := postVoice(t, router, "audio", []byte("webm bytes"), map[string]string{"lang": "en"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var reply voiceReply
	if err := json.Unmarshal(rr.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.SessionID == "" {
		t.Fatal("expected minted session id")
	}
	if !strings.Contains(reply.Transcript, "voice note") {
		t.Fatalf("unexpected transcript %q", reply.Transcript)
	}
	if reply.Answer == "" {
		t.Fatal("expected an answer")
	}
	if reply.AudioBase64 == "" || reply.AudioMIME != "audio/wav" {
		t.Fatalf("expected stand-in audio, got mime=%q", reply.AudioMIME)
	}
	if len(reply.History) != 2 {
		t.Fatalf("expected user+assistant history, got %d entries", len(reply.History))
	}
}

func TestVoiceTurnAcceptsFileField(t *testing.T) {
	router := NewRouter(newTestHandler())
	rr := postVoice(t, router, "file", []byte("webm bytes"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestVoiceTurnKeepsSessionHistory(t *testing.T) {
	router := NewRouter(newTestHandler())

	rr := postVoice(t, router, "audio", []byte("turn one"), nil)
	var first voiceReply
	if err := json.Unmarshal(rr.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = postVoice(t, router, "audio", []byte("turn two"), map[string]string{"session_id": first.SessionID})
	var second voiceReply
	if err := json.Unmarshal(rr.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatal("expected session id to stick")
	}
	if len(second.History) != 4 {
		t.Fatalf("expected accumulated history, got %d entries", len(second.History))
	}
}

func TestVoiceTurnRejectsEmptyAudio(t *testing.T) {
	router := NewRouter(newTestHandler())
	rr := postVoice(t, router, "audio", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Empty audio") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestVoiceTurnRejectsMissingPart(t *testing.T) {
	router := NewRouter(newTestHandler())

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("lang", "en")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/alina/voice", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCancelUnknownSession(t *testing.T) {
	router := NewRouter(newTestHandler())

	form := url.Values{"session_id": {"ghost"}}
	req := httptest.NewRequest(http.MethodPost, "/alina/cancel", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_found") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestCancelRegistryFlagsActiveTurn(t *testing.T) {
	reg := newCancelRegistry()
	reg.begin("s1")

	if !reg.cancel("s1") {
		t.Fatal("expected active turn to be cancellable")
	}
	if !reg.cancelled("s1") {
		t.Fatal("expected cancelled flag")
	}

	reg.end("s1")
	if reg.cancel("s1") {
		t.Fatal("finished turn must not be cancellable")
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewRouter(newTestHandler())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestChatWSAnswersEachFrame(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestHandler()))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	frames := []string{"hello", "how are you"}
	for _, frame := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write err: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read err: %v", err)
		}
		if !strings.Contains(string(data), frame) {
			t.Fatalf("expected echo of %q, got %q", frame, data)
		}
	}
}

func TestHistoryStore(t *testing.T) {
	store := NewHistoryStore()

	id := store.Ensure("")
	if id == "" {
		t.Fatal("expected minted id")
	}
	if got := store.Ensure(id); got != id {
		t.Fatalf("expected stable id, got %s", got)
	}

	if err := store.Append(id, "user", "hi"); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if err := store.Append("ghost", "user", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	history, err := store.History(id)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 1 || history[0].Content != "hi" {
		t.Fatalf("unexpected history %v", history)
	}

	// The returned slice is a copy.
	history[0].Content = "mutated"
	fresh, _ := store.History(id)
	if fresh[0].Content != "hi" {
		t.Fatal("history must not be mutable from outside")
	}
}

func TestBeepWAVShape(t *testing.T) {
	wav := beepWAV()
	if len(wav) <= 44 {
		t.Fatalf("expected header plus samples, got %d bytes", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad WAV magic: % x", wav[:12])
	}
}

func TestEchoResponder(t *testing.T) {
	answer, err := EchoResponder{}.Answer(context.Background(), nil, "ping")
	if err != nil {
		t.Fatalf("Answer err: %v", err)
	}
	if !strings.Contains(answer, "ping") {
		t.Fatalf("unexpected answer %q", answer)
	}
}
