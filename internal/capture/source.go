// Package capture wraps an audio input into a start/stop recording
// lifecycle that yields one finished buffer per take.
package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultMIME is used when a source does not report its own audio format.
const DefaultMIME = "audio/webm"

// Source supplies raw audio chunks while a recording is active. Closing the
// source finalizes the take; subsequent reads return an error or io.EOF.
type Source interface {
	io.ReadCloser

	// MIMEType reports the native format of the produced audio, or "" when
	// the source does not know it.
	MIMEType() string
}

// SourceFactory opens the capture device. Opening is the step that can be
// denied (missing device, missing binary, no read permission).
type SourceFactory func(ctx context.Context) (Source, error)

// PermissionError reports that the audio input could not be opened.
type PermissionError struct {
	Cause error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("microphone access denied or unavailable: %v", e.Cause)
}

func (e *PermissionError) Unwrap() error { return e.Cause }

type fileSource struct {
	f    *os.File
	mime string
}

func (s *fileSource) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *fileSource) Close() error               { return s.f.Close() }
func (s *fileSource) MIMEType() string           { return s.mime }

// FileSource reads audio from a file on disk, inferring the mime type from
// the extension. Useful for demos and tests that replay a recorded take.
func FileSource(path string) SourceFactory {
	return func(_ context.Context) (Source, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return &fileSource{f: f, mime: mimeFromExt(path)}, nil
	}
}

type commandSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	mime   string
}

func (s *commandSource) Read(p []byte) (int, error) { return s.stdout.Read(p) }

func (s *commandSource) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

func (s *commandSource) MIMEType() string { return s.mime }

// CommandSource captures audio from an external recorder command (ffmpeg,
// arecord, sox) writing the encoded stream to stdout.
func CommandSource(mime string, name string, args ...string) SourceFactory {
	return func(ctx context.Context) (Source, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &commandSource{cmd: cmd, stdout: stdout, mime: mime}, nil
	}
}

// mimeFromExt maps common audio extensions to their mime type.
func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "audio/webm"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return ""
	}
}
