package imdraw

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestDefaultLoggerSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() = nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger is enabled, want silent")
	}
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	Logger().Info("hello", "answer", 42)

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "answer=42") {
		t.Errorf("log output = %q, want message and attrs", out)
	}
}

func TestSetLoggerNilRestoresSilence(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	SetLogger(nil)

	Logger().Error("should not appear")

	if buf.Len() != 0 {
		t.Errorf("log output after SetLogger(nil) = %q, want empty", buf.String())
	}
}

func TestSetLoggerConcurrent(t *testing.T) {
	defer SetLogger(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetLogger(newNopLogger())
		}()
		go func() {
			defer wg.Done()
			Logger().Debug("race probe")
		}()
	}
	wg.Wait()
}
