package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestUnavailableWithoutModel(t *testing.T) {
	w := New("", "")
	if w.Available() {
		t.Error("available without model")
	}
	_, err := w.Transcribe(context.Background(), "x.ogg")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestUnavailableWithMissingModelFile(t *testing.T) {
	w := New("", filepath.Join(t.TempDir(), "ggml-base.bin"))
	if w.Available() {
		t.Error("available with missing model file")
	}
}

func TestUnavailableWithMissingBinary(t *testing.T) {
	model := filepath.Join(t.TempDir(), "ggml-base.bin")
	if err := os.WriteFile(model, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := New("definitely-not-a-real-binary-name", model)
	if w.Available() {
		t.Error("available with missing binary")
	}
}
