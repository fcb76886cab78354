// Package memlog defines the logging facade the memory core emits diagnostics
// through. The core only ever calls the four leveled methods with a subsystem
// tag and structured key/value pairs; formatting, routing, and persistence are
// the embedder's business. Inject an implementation when constructing a
// Manager, or rely on the slog-backed default.
package memlog

import (
	"io"
	"log/slog"
)

// Logger is the leveled, tagged diagnostic interface the memory core calls.
// The tag identifies the emitting subsystem or allocator ("manager", "zone",
// an allocator name); kv pairs follow the slog convention of alternating
// string keys and values.
type Logger interface {
	Debug(tag, msg string, kv ...any)
	Info(tag, msg string, kv ...any)
	Warn(tag, msg string, kv ...any)
	Error(tag, msg string, kv ...any)
}

// slogLogger adapts a *slog.Logger to the Logger interface. The tag travels
// as a leading "tag" attribute so handlers can filter or group on it.
type slogLogger struct {
	l *slog.Logger
}

// Slog wraps an existing slog logger. Passing nil wraps slog.Default().
func Slog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

// Default returns a Logger backed by the process-wide slog default handler.
func Default() Logger {
	return &slogLogger{l: slog.Default()}
}

// Discard returns a Logger that drops everything. Useful as the explicit
// "no diagnostics" choice in tests and benchmarks.
func Discard() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (s *slogLogger) Debug(tag, msg string, kv ...any) {
	s.l.Debug(msg, prepend(tag, kv)...)
}

func (s *slogLogger) Info(tag, msg string, kv ...any) {
	s.l.Info(msg, prepend(tag, kv)...)
}

func (s *slogLogger) Warn(tag, msg string, kv ...any) {
	s.l.Warn(msg, prepend(tag, kv)...)
}

func (s *slogLogger) Error(tag, msg string, kv ...any) {
	s.l.Error(msg, prepend(tag, kv)...)
}

func prepend(tag string, kv []any) []any {
	out := make([]any, 0, len(kv)+2)
	out = append(out, "tag", tag)
	return append(out, kv...)
}
