// Package codec converts reply audio between its base64 wire form and
// the binary buffer handed to playback.
package codec

import (
	"encoding/base64"
	"fmt"
)

// DefaultAudioMIME is assumed when the server omits audio_mime.
const DefaultAudioMIME = "audio/mpeg"

// AudioBuffer is a finished binary audio payload tagged with its mime type.
type AudioBuffer struct {
	Data []byte
	MIME string
}

// Len returns the payload size in bytes.
func (b *AudioBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// DecodeError reports malformed base64 or an otherwise undecodable payload.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio decode failed: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// EncodeToText encodes binary audio into its base64 wire form.
func EncodeToText(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeFromText decodes a base64 payload into an AudioBuffer. The result is
// byte-identical to the originally encoded data; an empty mime falls back to
// DefaultAudioMIME.
func DecodeFromText(text, mimeType string) (*AudioBuffer, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if mimeType == "" {
		mimeType = DefaultAudioMIME
	}
	return &AudioBuffer{Data: data, MIME: mimeType}, nil
}
