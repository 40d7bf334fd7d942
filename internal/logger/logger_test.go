package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scriptd.log")

	l := New(Config{FilePath: path, JSON: true})
	l.Info("hello", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "\"key\":\"value\"")
}

func TestWithRunID_TagsLogLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	Init(slog.New(handler))

	ctx := WithRunID(context.Background(), "abc-123")
	Info(ctx, "running script")

	assert.Contains(t, buf.String(), "\"run_id\":\"abc-123\"")
}

func TestInfo_WithoutRunID_OmitsTag(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Init(slog.New(slog.NewJSONHandler(&buf, nil)))

	Info(context.Background(), "no run id here")

	assert.False(t, strings.Contains(buf.String(), "run_id"))
}
