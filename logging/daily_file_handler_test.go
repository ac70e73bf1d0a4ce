package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestDailyFileHandlerWritesFileAndStdout(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	var stdout bytes.Buffer

	h, err := newDailyFileHandler(dir, "smartdoc", &stdout, clock.now, nil)
	require.NoError(t, err)
	defer h.Close()

	slog.New(h).With(slog.String("component", "ingest")).Info("Document processed", slog.Int("chunks", 3))

	assert.Equal(t, filepath.Join(dir, "smartdoc-2024-03-09.log"), h.CurrentFile())
	data, err := os.ReadFile(h.CurrentFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Document processed")
	assert.Contains(t, string(data), "component=ingest")
	assert.Contains(t, string(data), "chunks=3")
	assert.Contains(t, stdout.String(), "Document processed")
}

func TestDailyFileHandlerRotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{t: time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)}

	h, err := newDailyFileHandler(dir, "smartdoc", &bytes.Buffer{}, clock.now, nil)
	require.NoError(t, err)
	defer h.Close()
	logger := slog.New(h).WithGroup("request")

	logger.Info("before midnight")
	clock.t = clock.t.Add(2 * time.Minute)
	logger.Info("after midnight")

	first, err := os.ReadFile(filepath.Join(dir, "smartdoc-2024-03-09.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "smartdoc-2024-03-10.log"))
	require.NoError(t, err)

	assert.Contains(t, string(first), "before midnight")
	assert.NotContains(t, string(first), "after midnight")
	assert.Contains(t, string(second), "after midnight")
	assert.Equal(t, filepath.Join(dir, "smartdoc-2024-03-10.log"), h.CurrentFile())
}

func TestDailyFileHandlerRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer
	h, err := newDailyFileHandler(dir, "smartdoc", &stdout, time.Now, &slog.HandlerOptions{Level: slog.LevelWarn})
	require.NoError(t, err)
	defer h.Close()

	logger := slog.New(h)
	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, stdout.String(), "quiet")
	assert.Contains(t, stdout.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
