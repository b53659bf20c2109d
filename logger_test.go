package ffetch

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func newBufferLogger() (*SimpleLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &SimpleLogger{out: log.New(&buf, "", 0)}, &buf
}

func TestSimpleLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 log lines, got %d", len(lines))
	}

	expected := []string{"DEBUG debug message", "INFO info message", "WARN warn message", "ERROR error message"}
	for i, want := range expected {
		if lines[i] != want {
			t.Errorf("Expected line %q, got %q", want, lines[i])
		}
	}
}

func TestSimpleLoggerKeyValues(t *testing.T) {
	logger, buf := newBufferLogger()

	logger.Debug("starting request", "requestID", "abc", "attempt", 2)

	got := strings.TrimSpace(buf.String())
	want := "DEBUG starting request requestID=abc attempt=2"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSimpleLoggerOddKeyValues(t *testing.T) {
	logger, buf := newBufferLogger()

	logger.Info("message", "dangling")

	got := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(got, "dangling=") {
		t.Errorf("Expected dangling key rendered with empty value, got %q", got)
	}
}

func TestNewSimpleLogger(t *testing.T) {
	logger := NewSimpleLogger()
	if logger == nil {
		t.Fatal("NewSimpleLogger() returned nil")
	}
	if logger.out == nil {
		t.Error("Expected an underlying log.Logger")
	}
}

func TestDefaultDebugConfig(t *testing.T) {
	cfg := DefaultDebugConfig()

	if cfg.Enabled {
		t.Error("Expected debug disabled by default")
	}
	if !cfg.LogRequests || !cfg.LogRetries || !cfg.LogCircuit || !cfg.LogDedupe {
		t.Error("Expected all event classes selected by default")
	}
	if cfg.RequestIDGen == nil {
		t.Fatal("Expected a request ID generator")
	}

	id := cfg.RequestIDGen()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Expected UUID request IDs, got %q: %v", id, err)
	}

	if cfg.RequestIDGen() == id {
		t.Error("Expected unique request IDs")
	}
}
