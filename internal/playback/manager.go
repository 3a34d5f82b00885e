// Package playback owns the lifecycle of the single decoded reply audio
// resource a session may hold at a time.
package playback

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/alinalabs/alina-go/internal/codec"
)

// Resource is a revocable handle to one decoded reply audio payload,
// materialized as a temp file so external players can consume it.
type Resource struct {
	path string
	mime string
	size int
}

// Path returns the on-disk location of the decoded audio.
func (r *Resource) Path() string { return r.path }

// MIME returns the declared audio format.
func (r *Resource) MIME() string { return r.mime }

// Size returns the decoded payload length in bytes.
func (r *Resource) Size() int { return r.size }

// Manager holds at most one live Resource. Loading a new reply releases
// the previous handle before the new one is stored, so the underlying file
// is never leaked.
type Manager struct {
	mu      sync.Mutex
	current *Resource
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Load materializes the decoded buffer as the session's playback resource,
// replacing (and revoking) any prior one.
func (m *Manager) Load(buf *codec.AudioBuffer) (*Resource, error) {
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("no audio to load")
	}

	f, err := os.CreateTemp("", "alina-reply-*"+extForMIME(buf.MIME))
	if err != nil {
		return nil, fmt.Errorf("create playback file: %w", err)
	}
	if _, err := f.Write(buf.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write playback file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close playback file: %w", err)
	}

	next := &Resource{path: f.Name(), mime: buf.MIME, size: len(buf.Data)}

	m.mu.Lock()
	prev := m.current
	m.current = next
	m.mu.Unlock()

	m.revoke(prev)
	return next, nil
}

// Current returns the live resource, or nil when playback is unavailable.
func (m *Manager) Current() *Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Playable reports whether a resource is held.
func (m *Manager) Playable() bool {
	return m.Current() != nil
}

// Release tears down the held resource. Idempotent; called on session
// reset and shutdown.
func (m *Manager) Release() {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	m.revoke(prev)
}

func (m *Manager) revoke(r *Resource) {
	if r == nil {
		return
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		log.Printf("[playback] revoke %s: %v", r.path, err)
	}
}

func extForMIME(mime string) string {
	switch mime {
	case "audio/mpeg":
		return ".mp3"
	case "audio/webm":
		return ".webm"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
