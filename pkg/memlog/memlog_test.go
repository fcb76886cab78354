package memlog

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogCarriesTagAndPairs(t *testing.T) {
	var buf bytes.Buffer
	l := Slog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Warn("zone", "zone exhausted", "requested", 128, "available", 64)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "tag=zone")
	assert.Contains(t, out, "zone exhausted")
	assert.Contains(t, out, "requested=128")
	assert.Contains(t, out, "available=64")
}

func TestSlogNilFallsBackToDefault(t *testing.T) {
	require.NotNil(t, Slog(nil))
}

func TestDiscardDoesNotPanic(t *testing.T) {
	l := Discard()
	l.Debug("t", "a")
	l.Info("t", "b", "k", 1)
	l.Warn("t", "c")
	l.Error("t", "d", "err", assert.AnError)
}
