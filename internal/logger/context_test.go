package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("Should return the stored logger", func(t *testing.T) {
		want := slog.New(slog.NewJSONHandler(io.Discard, nil))
		assert.Same(t, want, FromContext(WithContext(context.Background(), want)))
	})

	t.Run("Should fall back to the default logger", func(t *testing.T) {
		assert.Same(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("Should ignore a stored nil logger", func(t *testing.T) {
		ctx := WithContext(context.Background(), nil)
		assert.NotNil(t, FromContext(ctx))
	})
}

func TestWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("request_id", "req-1"))
	ctx := WithContext(context.Background(), base)

	ctx = With(ctx, slog.String("flag", "checkout"))
	FromContext(ctx).Info("evaluated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "checkout", entry["flag"])

	t.Run("Should return ctx unchanged without args", func(t *testing.T) {
		assert.Equal(t, ctx, With(ctx))
	})
}
