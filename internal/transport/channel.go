// Package transport carries one conversational turn to the assistant
// service and brings its reply back. Two variants exist behind the same
// capability interface: a persistent websocket text channel and a one-shot
// multipart upload channel.
package transport

import (
	"context"

	"github.com/alinalabs/alina-go/internal/codec"
)

// Placeholder strings substituted when the server omits or empties the
// corresponding reply field.
const (
	PlaceholderTranscript = "(no transcript)"
	PlaceholderAnswer     = "(no answer)"
)

// Turn is one outbound user contribution: trimmed text for the streaming
// variant, a finished audio buffer for the request variant. The audio
// buffer is consumed by the send and must not be reused.
type Turn struct {
	Text  string
	Audio *codec.AudioBuffer
}

// HistoryEntry is one role-tagged line of the server-side conversation log.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the server's response to a turn. The streaming variant fills
// only Text; the request variant fills the structured fields.
type Reply struct {
	Text string `json:"-"`

	Transcript  string         `json:"transcript"`
	Answer      string         `json:"answer"`
	AudioBase64 string         `json:"audio_base64"`
	AudioMIME   string         `json:"audio_mime"`
	SessionID   string         `json:"session_id"`
	History     []HistoryEntry `json:"history"`
}

// HasAudio reports whether the reply carries a playable audio payload.
func (r *Reply) HasAudio() bool {
	return r != nil && r.AudioBase64 != ""
}

// ReplyHandler receives replies that arrive asynchronously, one at a time,
// in receipt order.
type ReplyHandler func(Reply)

// Channel is the transport seam the session controller drives. Send either
// returns the reply directly (request variant) or returns nil and delivers
// replies through the registered handler (streaming variant).
type Channel interface {
	Send(ctx context.Context, turn Turn) (*Reply, error)
	SetReplyHandler(h ReplyHandler)
	Close() error
}
