// Package testutil provides shared test fixtures for the memory core,
// chiefly a capturing logger so tests can assert that operations emitted the
// diagnostics they promise without parsing formatted output.
package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one captured log call.
type Entry struct {
	Level string // "debug", "info", "warn", "error"
	Tag   string
	Msg   string
	KV    []any
}

// String renders the entry roughly the way a text handler would, for test
// failure messages.
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", strings.ToUpper(e.Level), e.Tag, e.Msg)
	for i := 0; i+1 < len(e.KV); i += 2 {
		fmt.Fprintf(&b, " %v=%v", e.KV[i], e.KV[i+1])
	}
	return b.String()
}

// CaptureLogger implements memlog.Logger by recording every call. Safe for
// concurrent use, since allocators log from multiple goroutines.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewCaptureLogger returns an empty capture logger.
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (l *CaptureLogger) Debug(tag, msg string, kv ...any) { l.append("debug", tag, msg, kv) }
func (l *CaptureLogger) Info(tag, msg string, kv ...any)  { l.append("info", tag, msg, kv) }
func (l *CaptureLogger) Warn(tag, msg string, kv ...any)  { l.append("warn", tag, msg, kv) }
func (l *CaptureLogger) Error(tag, msg string, kv ...any) { l.append("error", tag, msg, kv) }

func (l *CaptureLogger) append(level, tag, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Tag: tag, Msg: msg, KV: kv})
}

// Entries returns a snapshot of everything captured so far.
func (l *CaptureLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Contains reports whether any captured entry has the given level and a
// message containing substr.
func (l *CaptureLogger) Contains(level, substr string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

// CountLevel returns how many entries were captured at level.
func (l *CaptureLogger) CountLevel(level string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset drops everything captured so far.
func (l *CaptureLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
