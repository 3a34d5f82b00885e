package capture

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/alinalabs/alina-go/internal/codec"
)

// ErrAlreadyRecording is returned when Start is called mid-take.
var ErrAlreadyRecording = errors.New("capture already recording")

const chunkSize = 4096

// Recorder drives one capture source through a start/stop lifecycle.
// Chunks accumulate in arrival order and are concatenated into a single
// buffer when the take is stopped.
type Recorder struct {
	open SourceFactory

	mu        sync.Mutex
	recording bool
	src       Source
	mime      string
	chunks    [][]byte
	done      chan struct{}
}

// NewRecorder returns a Recorder that opens its input through factory.
func NewRecorder(factory SourceFactory) *Recorder {
	return &Recorder{open: factory}
}

// Recording reports whether a take is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start opens the capture source and begins buffering chunks in the
// background. It returns a PermissionError when the source cannot be
// opened, and returns immediately once capture is running.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	src, err := r.open(ctx)
	if err != nil {
		var perm *PermissionError
		if errors.As(err, &perm) {
			return err
		}
		return &PermissionError{Cause: err}
	}

	r.src = src
	r.mime = src.MIMEType()
	r.chunks = nil
	r.done = make(chan struct{})
	r.recording = true

	go r.pump(src, r.done)
	return nil
}

// pump reads chunks until the source is exhausted or closed. It is the
// only writer of r.chunks while r.done is open.
func (r *Recorder) pump(src Source, done chan struct{}) {
	defer close(done)
	buf := make([]byte, chunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.chunks = append(r.chunks, chunk)
		}
		if err != nil {
			return
		}
	}
}

// Stop finalizes the take and returns the concatenation of all buffered
// chunks as one audio buffer tagged with the negotiated mime type. Calling
// Stop when not recording is a no-op returning nil.
func (r *Recorder) Stop() (*codec.AudioBuffer, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, nil
	}
	src := r.src
	done := r.done
	r.recording = false
	r.src = nil
	r.mu.Unlock()

	if err := src.Close(); err != nil {
		log.Printf("[capture] source close: %v", err)
	}
	<-done

	total := 0
	for _, chunk := range r.chunks {
		total += len(chunk)
	}

	data := make([]byte, 0, total)
	for _, chunk := range r.chunks {
		data = append(data, chunk...)
	}
	r.chunks = nil

	mime := r.mime
	if mime == "" {
		mime = DefaultMIME
	}

	return &codec.AudioBuffer{Data: data, MIME: mime}, nil
}
