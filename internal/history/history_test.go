package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

func openTest(t *testing.T) *History {
	t.Helper()
	h, err := New(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func scan(source string, values ...string) *pipeline.ScanImageResult {
	res := &pipeline.ScanImageResult{Source: source}
	for _, v := range values {
		res.Codes = append(res.Codes, pipeline.CodeResult{Type: "qr", Value: v, Charset: "UTF-8", Version: 2, ECLevel: "M"})
	}
	return res
}

func TestRecordAndRecent(t *testing.T) {
	h := openTest(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, h.Record(ctx, "cli", scan("a.png", "first", "second")))
	require.NoError(t, h.Record(ctx, "server", scan("b.png", "third")))

	entries, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Value)
	assert.Equal(t, "server", entries[0].Origin)
	assert.Equal(t, "b.png", entries[0].Source)
	assert.Equal(t, "first", entries[2].Value)
	assert.Equal(t, 2, entries[2].Version)
	assert.Equal(t, "M", entries[2].ECLevel)
	assert.True(t, fixed.Equal(entries[1].Time))

	entries, err = h.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "third", entries[0].Value)
}

func TestRecordSkipsEmptyResults(t *testing.T) {
	h := openTest(t)
	ctx := context.Background()
	require.NoError(t, h.Record(ctx, "cli", nil))
	require.NoError(t, h.Record(ctx, "cli", scan("empty.png")))

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	entries, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentRecord(t *testing.T) {
	h := openTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Record(ctx, "server", scan(fmt.Sprintf("%d.png", i), "v")))
		}()
	}
	wg.Wait()

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := New(path)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), "cli", scan("x.png", "kept")))
	require.NoError(t, h.Close())

	h, err = New(path)
	require.NoError(t, err)
	defer func() { _ = h.Close() }()
	entries, err := h.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Value)
}
