package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/alinalabs/alina-go/internal/capture"
	"github.com/alinalabs/alina-go/internal/codec"
	"github.com/alinalabs/alina-go/internal/playback"
	"github.com/alinalabs/alina-go/internal/transport"
)

// Callbacks abstracts the UI surface the controller reports into. All
// fields are optional; nil callbacks are skipped.
type Callbacks struct {
	// OnStatus fires on every state change.
	OnStatus func(State)

	// OnAppend adds one role-tagged line to the conversation log.
	OnAppend func(role, text string)

	// OnError surfaces a user-visible failure message.
	OnError func(message string)

	// OnPlayable fires when the playback affordance becomes available or
	// is revoked.
	OnPlayable func(bool)
}

// Controller owns one conversational session: its state machine, the
// transport channel, the recorder (voice mode), and the playback manager.
// All user actions are serialized by the caller; the controller itself
// guards its state for the asynchronous reply path.
type Controller struct {
	id      string
	mode    Mode
	channel transport.Channel
	rec     *capture.Recorder
	player  *playback.Manager
	cb      Callbacks

	mu         sync.Mutex
	state      State
	lastError  string
	transcript string
	answer     string
}

// NewVoiceController builds the full voice-turn machine over a request
// channel.
func NewVoiceController(channel transport.Channel, rec *capture.Recorder, player *playback.Manager, cb Callbacks) *Controller {
	return &Controller{
		id:      uuid.NewString(),
		mode:    VoiceMode,
		channel: channel,
		rec:     rec,
		player:  player,
		cb:      cb,
	}
}

// NewTextController builds the collapsed Idle/Sending machine over a
// streaming channel. Inbound frames append to the log regardless of the
// local state.
func NewTextController(channel transport.Channel, cb Callbacks) *Controller {
	c := &Controller{
		id:      uuid.NewString(),
		mode:    TextMode,
		channel: channel,
		cb:      cb,
	}
	channel.SetReplyHandler(c.handleInbound)
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent surfaced error message.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Transcript returns the last turn's recognized user text (voice mode).
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Answer returns the last turn's assistant reply text (voice mode).
func (c *Controller) Answer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answer
}

// RecordEnabled reports whether the record control may be triggered. It is
// disabled from stop until the turn resolves.
func (c *Controller) RecordEnabled() bool {
	switch c.State() {
	case Idle, ReplyReady, Errored:
		return true
	}
	return false
}

// StartRecording handles the record trigger. A capture failure surfaces a
// microphone message and lands in the error state with the control
// re-enabled.
func (c *Controller) StartRecording(ctx context.Context) error {
	if !c.apply(RecordPressed) {
		return nil
	}
	if err := c.rec.Start(ctx); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// StopAndSend finalizes the take, uploads it, and resolves the reply. The
// turn cannot be aborted once the upload starts; it ends in ReplyReady or
// Errored.
func (c *Controller) StopAndSend(ctx context.Context) error {
	if !c.apply(StopPressed) {
		return nil
	}

	buf, err := c.rec.Stop()
	if err != nil {
		c.fail(err)
		return err
	}

	reply, err := c.channel.Send(ctx, transport.Turn{Audio: buf})
	if err != nil {
		c.fail(err)
		return err
	}

	c.apply(UploadComplete)
	c.handleReply(reply)
	return nil
}

// SendText handles the text-chat send action: fire-and-forget over the
// open streaming channel.
func (c *Controller) SendText(ctx context.Context, text string) error {
	if !c.apply(SendPressed) {
		return nil
	}

	if _, err := c.channel.Send(ctx, transport.Turn{Text: text}); err != nil {
		c.fail(err)
		return err
	}

	c.append("user", text)
	c.apply(SendComplete)
	return nil
}

// Playable reports whether a decoded reply is held for playback.
func (c *Controller) Playable() bool {
	return c.player != nil && c.player.Playable()
}

// PlaybackResource returns the live reply audio handle, or nil.
func (c *Controller) PlaybackResource() *playback.Resource {
	if c.player == nil {
		return nil
	}
	return c.player.Current()
}

// Close tears the session down: the channel is closed and any playback
// resource is released. Called on shutdown; idempotent.
func (c *Controller) Close() error {
	if c.player != nil {
		c.player.Release()
		c.notifyPlayable(false)
	}
	return c.channel.Close()
}

// handleReply resolves a structured voice reply: surface the texts, then
// decode and stage the audio if present. A decode failure disables
// playback without blocking the text reply.
func (c *Controller) handleReply(reply *transport.Reply) {
	if reply == nil {
		c.fail(errors.New("transport returned no reply"))
		return
	}

	c.mu.Lock()
	c.transcript = reply.Transcript
	c.answer = reply.Answer
	c.mu.Unlock()

	c.append("user", reply.Transcript)
	c.append("assistant", reply.Answer)

	if reply.HasAudio() {
		if err := c.loadReplyAudio(reply); err != nil {
			c.notifyError(err.Error())
		}
	}

	c.apply(ReplyReceived)
}

func (c *Controller) loadReplyAudio(reply *transport.Reply) error {
	buf, err := codec.DecodeFromText(reply.AudioBase64, reply.AudioMIME)
	if err != nil {
		return err
	}
	if c.player == nil {
		return nil
	}
	if _, err := c.player.Load(buf); err != nil {
		return err
	}
	c.notifyPlayable(true)
	return nil
}

// handleInbound receives streaming frames in receipt order, independent of
// the local machine state.
func (c *Controller) handleInbound(reply transport.Reply) {
	c.append("assistant", reply.Text)
}

// fail is the single error boundary: record the message, surface it, and
// move to the error state.
func (c *Controller) fail(err error) {
	msg := err.Error()

	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()

	c.apply(Failed)
	c.notifyError(msg)
}

// apply runs one event through the transition table. Invalid events are
// logged no-ops.
func (c *Controller) apply(e Event) bool {
	c.mu.Lock()
	next, ok := transition(c.mode, c.state, e)
	if !ok {
		state := c.state
		c.mu.Unlock()
		log.Printf("[session] ignoring %s in state %s session=%s", e, state, c.id)
		return false
	}
	c.state = next
	c.mu.Unlock()

	if c.cb.OnStatus != nil {
		c.cb.OnStatus(next)
	}
	return true
}

func (c *Controller) append(role, text string) {
	if c.cb.OnAppend != nil {
		c.cb.OnAppend(role, text)
	}
}

func (c *Controller) notifyError(msg string) {
	if c.cb.OnError != nil {
		c.cb.OnError(msg)
	}
}

func (c *Controller) notifyPlayable(ok bool) {
	if c.cb.OnPlayable != nil {
		c.cb.OnPlayable(ok)
	}
}
