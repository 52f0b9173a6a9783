package pipeline

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpProgressCallback(t *testing.T) {
	var cb ProgressCallback = NoOpProgressCallback{}
	cb.OnStart(10)
	cb.OnProgress(5, 10)
	cb.OnError(3, assert.AnError)
	cb.OnComplete()
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "scan: ").WithWidth(10).WithUpdateInterval(0)

	cb.OnStart(4)
	assert.Contains(t, buf.String(), "scan: 0/4 (0.0%)")

	buf.Reset()
	cb.OnProgress(2, 4)
	assert.Contains(t, buf.String(), "[#####-----] 2/4 (50.0%)")

	buf.Reset()
	cb.OnError(1, assert.AnError)
	assert.Contains(t, buf.String(), "scan: Image 1:")

	buf.Reset()
	cb.OnComplete()
	assert.Contains(t, buf.String(), "scan: Completed in")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cb := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(2)

	cb.OnStart(3)
	cb.OnProgress(1, 3)
	assert.NotContains(t, buf.String(), "Scan progress")
	cb.OnProgress(2, 3)
	assert.Contains(t, buf.String(), "current=2")
	cb.OnProgress(3, 3)
	assert.Contains(t, buf.String(), "current=3")
	cb.OnError(0, assert.AnError)
	assert.Contains(t, buf.String(), "level=WARN")
	cb.OnComplete()
	assert.Contains(t, buf.String(), "Scan completed")
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	multi := MultiProgressCallback{a, b}
	multi.OnStart(2)
	multi.OnProgress(1, 2)
	multi.OnError(1, assert.AnError)
	multi.OnComplete()

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, 2, r.total)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, []int{1}, r.errors)
		assert.True(t, r.done)
	}
}
