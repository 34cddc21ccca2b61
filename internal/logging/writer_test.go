package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_WriteAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)

	_, err = w.Write([]byte("first line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Reopening appends instead of truncating.
	w, err = NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	_, err = w.Write([]byte("second line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line\n", string(data))
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	w.SetImmediateSync(false)
	defer w.Close()

	// Two writes that together exceed 1MB force a rotation.
	chunk := bytes.Repeat([]byte("x"), 600*1024)
	_, err = w.Write(chunk)
	require.NoError(t, err)
	_, err = w.Write(chunk)
	require.NoError(t, err)

	require.NoError(t, w.Sync())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(600*1024), info.Size())
}

func TestRotatingWriter_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.SetImmediateSync(false)
	defer w.Close()

	chunk := bytes.Repeat([]byte("y"), 700*1024)
	for i := 0; i < 5; i++ {
		_, err = w.Write(chunk)
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromString("debug"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("info"))
	assert.Equal(t, slog.LevelWarn, LevelFromString("warn"))
	assert.Equal(t, slog.LevelWarn, LevelFromString("WARNING"))
	assert.Equal(t, slog.LevelError, LevelFromString("error"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("unknown"))
}

func TestForComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)

	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, nil)))
	defer slog.SetDefault(old)

	ForComponent("indexer").Info("pass complete", "added", 3)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"indexer"`)
	assert.Contains(t, string(data), `"added":3`)
}

func TestWriterProducesValidJSONLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(w, nil))
	logger.Info("shard loaded", "area", "contract_law", "decisions", 12)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, "{"))
	assert.Contains(t, line, `"msg":"shard loaded"`)
	assert.Contains(t, line, `"area":"contract_law"`)
}
