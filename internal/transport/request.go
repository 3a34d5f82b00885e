package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RequestOptions configures the one-shot upload channel.
type RequestOptions struct {
	// Endpoint is the full URL of the voice endpoint.
	Endpoint string

	// FieldName is the multipart field carrying the audio part,
	// "audio" or "file" depending on the server instance.
	FieldName string

	// Filename names the uploaded blob.
	Filename string

	// Lang is forwarded as the lang form value when non-empty.
	Lang string

	Timeout time.Duration
	Client  *http.Client
}

// DefaultRequestOptions matches the production voice endpoint contract.
func DefaultRequestOptions(endpoint string) RequestOptions {
	return RequestOptions{
		Endpoint:  endpoint,
		FieldName: "audio",
		Filename:  "voice.webm",
		Timeout:   60 * time.Second,
	}
}

// RequestChannel uploads one finished audio buffer per send and awaits the
// structured JSON reply.
type RequestChannel struct {
	opts   RequestOptions
	client *http.Client

	mu        sync.Mutex
	handler   ReplyHandler
	sessionID string
}

// NewRequestChannel creates the one-shot upload channel.
func NewRequestChannel(opts RequestOptions) *RequestChannel {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.FieldName == "" {
		opts.FieldName = "audio"
	}
	if opts.Filename == "" {
		opts.Filename = "voice.webm"
	}
	return &RequestChannel{opts: opts, client: client}
}

// SetReplyHandler is accepted for interface symmetry; the request variant
// returns its reply synchronously from Send.
func (c *RequestChannel) SetReplyHandler(h ReplyHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// SessionID returns the server-assigned session identifier from the most
// recent reply, or "" before the first successful turn.
func (c *RequestChannel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Send packages the turn's audio as a multipart upload and awaits the
// reply. Non-2xx responses come back as a ServerError carrying the body
// text captured while the response was still readable.
func (c *RequestChannel) Send(ctx context.Context, turn Turn) (*Reply, error) {
	if turn.Audio == nil || len(turn.Audio.Data) == 0 {
		return nil, ErrNoAudio
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := createAudioPart(writer, c.opts.FieldName, c.opts.Filename, turn.Audio.MIME)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(turn.Audio.Data); err != nil {
		return nil, fmt.Errorf("write audio part: %w", err)
	}
	if c.opts.Lang != "" {
		if err := writer.WriteField("lang", c.opts.Lang); err != nil {
			return nil, fmt.Errorf("write lang field: %w", err)
		}
	}
	if sid := c.SessionID(); sid != "" {
		if err := writer.WriteField("session_id", sid); err != nil {
			return nil, fmt.Errorf("write session_id field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("[request] uploading turn bytes=%d field=%s", len(turn.Audio.Data), c.opts.FieldName)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "upload", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The body is not re-readable later; capture it now.
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			raw = nil
		}
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	applyDefaults(&reply)

	c.mu.Lock()
	if reply.SessionID != "" {
		c.sessionID = reply.SessionID
	}
	c.mu.Unlock()

	return &reply, nil
}

// Health probes the service's health endpoint, resolved as a sibling of
// the voice endpoint.
func (c *RequestChannel) Health(ctx context.Context) error {
	base, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	base.Path = "/health"
	base.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: "health", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}

// Close releases idle connections. The channel itself carries no state
// beyond the remembered session id.
func (c *RequestChannel) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// createAudioPart builds the form-data part with an explicit content type,
// which mime/multipart's CreateFormFile does not allow.
func createAudioPart(writer *multipart.Writer, field, filename, mimeType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	header.Set("Content-Type", mimeType)
	return writer.CreatePart(header)
}

// applyDefaults substitutes the placeholder strings for absent or empty
// transcript/answer fields.
func applyDefaults(reply *Reply) {
	if strings.TrimSpace(reply.Transcript) == "" {
		reply.Transcript = PlaceholderTranscript
	}
	if strings.TrimSpace(reply.Answer) == "" {
		reply.Answer = PlaceholderAnswer
	}
	if reply.AudioBase64 != "" && reply.AudioMIME == "" {
		reply.AudioMIME = "audio/mpeg"
	}
}
