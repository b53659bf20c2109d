package ffetch

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Logger receives structured debug output. Key/value pairs alternate in
// keysAndValues, slog style.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger is a minimal console logger writing level-prefixed key=value
// lines to stderr.
type SimpleLogger struct {
	out *log.Logger
}

// NewSimpleLogger returns a SimpleLogger writing to stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		out: log.New(os.Stderr, "ffetch ", log.LstdFlags|log.Lmicroseconds),
	}
}

// Debug logs at debug level.
func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) {
	l.print("DEBUG", msg, keysAndValues)
}

// Info logs at info level.
func (l *SimpleLogger) Info(msg string, keysAndValues ...any) {
	l.print("INFO", msg, keysAndValues)
}

// Warn logs at warn level.
func (l *SimpleLogger) Warn(msg string, keysAndValues ...any) {
	l.print("WARN", msg, keysAndValues)
}

// Error logs at error level.
func (l *SimpleLogger) Error(msg string, keysAndValues ...any) {
	l.print("ERROR", msg, keysAndValues)
}

func (l *SimpleLogger) print(level, msg string, keysAndValues []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 == 1 {
		fmt.Fprintf(&b, " %v=", keysAndValues[len(keysAndValues)-1])
	}
	l.out.Println(b.String())
}

// DebugConfig controls which lifecycle events are logged when a Logger is
// configured.
type DebugConfig struct {
	// Enabled turns debug logging on.
	Enabled bool
	// LogRequests logs call start and completion.
	LogRequests bool
	// LogRetries logs each scheduled retry with its delay.
	LogRetries bool
	// LogCircuit logs breaker rejections and state transitions.
	LogCircuit bool
	// LogDedupe logs deduplication owner/waiter decisions.
	LogDedupe bool
	// RequestIDGen generates the per-call ID used in log lines and in the
	// pending-call registry.
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with all event classes selected but
// logging disabled, and UUID request IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCircuit:   true,
		LogDedupe:    true,
		RequestIDGen: func() string { return uuid.NewString() },
	}
}
