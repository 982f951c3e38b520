// Package transcribe converts voice recordings to text by shelling out to a
// local whisper.cpp binary. The binary and model are optional; when either is
// missing the transcriber reports itself unavailable and callers fall back to
// storing the raw recording.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ErrUnavailable is returned when transcription is attempted without a
// usable binary and model.
var ErrUnavailable = errors.New("transcription unavailable")

// DefaultBinary is the whisper.cpp CLI name looked up on PATH when no
// explicit binary path is configured.
const DefaultBinary = "whisper-cli"

// Whisper runs a local whisper.cpp binary against audio files.
type Whisper struct {
	Binary string
	Model  string

	resolveOnce sync.Once
	resolved    string
	resolveErr  error
}

// New creates a transcriber. binary may be empty to look up DefaultBinary on
// PATH; model is the path to a ggml model file.
func New(binary, model string) *Whisper {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Whisper{Binary: binary, Model: model}
}

// resolve locates the binary and checks the model file, once.
func (w *Whisper) resolve() (string, error) {
	w.resolveOnce.Do(func() {
		if w.Model == "" {
			w.resolveErr = ErrUnavailable
			return
		}
		if _, err := os.Stat(w.Model); err != nil {
			w.resolveErr = ErrUnavailable
			return
		}
		path, err := exec.LookPath(w.Binary)
		if err != nil {
			w.resolveErr = ErrUnavailable
			return
		}
		w.resolved = path
	})
	return w.resolved, w.resolveErr
}

// Available reports whether a transcription attempt can succeed.
func (w *Whisper) Available() bool {
	_, err := w.resolve()
	return err == nil
}

// Transcribe runs the model over the audio file at path and returns the
// recognized text, trimmed to one block.
func (w *Whisper) Transcribe(ctx context.Context, path string) (string, error) {
	bin, err := w.resolve()
	if err != nil {
		return "", err
	}

	// -nt drops timestamps, -np suppresses progress chatter.
	cmd := exec.CommandContext(ctx, bin, "-m", w.Model, "-f", path, "-nt", "-np")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", fmt.Errorf("transcribe %s: empty result", path)
	}
	return text, nil
}
