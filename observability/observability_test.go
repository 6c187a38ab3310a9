package observability

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestNopLoggerDoesNotPanic(t *testing.T) {
	var l Logger = NopLogger{}
	l = l.With(String("component", "test"))
	l.Debug("debug", Int("n", 1))
	l.Info("info", Float64("score", 0.5))
	l.Warn("warn")
	l.Error("error", Error("err", nil))
}

func TestSlogLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := SlogLogger{L: slog.New(slog.NewTextHandler(&buf, nil))}
	l.With(String("component", "registry")).Info("scan complete", Int("fonts", 3))
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("component=registry")) {
		t.Errorf("missing component field in %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("fonts=3")) {
		t.Errorf("missing fonts field in %q", out)
	}
}
