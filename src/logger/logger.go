// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/helper/gc"
)

// Logger defines the interface for logging operations.
// It provides methods for different log levels and formatted output.
//
// This interface supports both CLI and structured output, allowing seamless
// switching between human-readable output and JSON lines.
type Logger interface {
	// Printf formats and prints a log message.
	Printf(format string, v ...any)
	// Println prints a log message with a newline.
	Println(v ...any)
	// SetOutput sets the output destination for the logger.
	SetOutput(w io.Writer)
}

// CLILogger implements Logger using the standard log package.
// It's designed for command-line interface output with human-readable formatting.
type CLILogger struct{ logger *log.Logger }

// NewCLILogger creates a new CLI logger with timestamps disabled.
// This is suitable for user-facing CLI output.
func NewCLILogger() *CLILogger {
	l := log.New(os.Stderr, "", 0)
	return &CLILogger{logger: l}
}

// Printf formats and prints a log message using fmt.Printf semantics.
func (c *CLILogger) Printf(format string, v ...any) { c.logger.Printf(format, v...) }

// Println prints a log message with a newline.
func (c *CLILogger) Println(v ...any) { c.logger.Println(v...) }

// SetOutput sets the output destination for the CLI logger.
func (c *CLILogger) SetOutput(w io.Writer) { c.logger.SetOutput(w) }

// sink is the destination shared by a JSONLogger and the loggers derived
// from it through [JSONLogger.With].
type sink struct {
	mu     sync.Mutex
	writer io.Writer
}

// JSONLogger implements Logger by writing one JSON object per line with the
// fields "time", "level", "component" and "message".
//
// JSONLogger is safe for concurrent use by multiple goroutines.
type JSONLogger struct {
	out       *sink
	component string
	silent    bool
	pool      gc.Pool
}

// entry is one JSON log line.
type entry struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// NewJSONLogger creates a structured logger writing to writer.
// A nil writer discards output; silent suppresses it entirely.
func NewJSONLogger(writer io.Writer, silent bool) *JSONLogger {
	if writer == nil {
		writer = io.Discard
	}
	return &JSONLogger{
		out:    &sink{writer: writer},
		silent: silent,
		pool:   gc.Default,
	}
}

// Nop returns a logger that drops every message.
func Nop() *JSONLogger { return NewJSONLogger(nil, true) }

// With returns a logger sharing l's output that tags every line with
// component.
func (l *JSONLogger) With(component string) *JSONLogger {
	return &JSONLogger{
		out:       l.out,
		component: component,
		silent:    l.silent,
		pool:      l.pool,
	}
}

// Printf formats and logs a structured message in JSON format.
// Output is suppressed if silent mode is enabled.
//
// Printf is safe for concurrent use by multiple goroutines.
func (l *JSONLogger) Printf(format string, v ...any) {
	if l.silent {
		return
	}
	l.write(fmt.Sprintf(format, v...))
}

// Println logs a structured message in JSON format.
// Output is suppressed if silent mode is enabled.
//
// Println is safe for concurrent use by multiple goroutines.
func (l *JSONLogger) Println(v ...any) {
	if l.silent {
		return
	}
	l.write(fmt.Sprint(v...))
}

func (l *JSONLogger) write(msg string) {
	buf := l.pool.Get()
	defer func() {
		buf.Reset()
		l.pool.Put(buf)
	}()

	// Encoder appends the trailing newline.
	_ = json.NewEncoder(buf).Encode(entry{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Level:     "info",
		Component: l.component,
		Message:   msg,
	})

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = buf.WriteTo(l.out.writer)
}

// SetOutput sets the output destination for the logger and every logger
// derived from it.
//
// SetOutput is safe for concurrent use by multiple goroutines.
func (l *JSONLogger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if w == nil {
		l.out.writer = io.Discard
	} else {
		l.out.writer = w
	}
}
