package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := With(WithLogger(context.Background(), logger), "stage", "spec.plain")
	FromContext(ctx).Info("Stage started.")

	assert.Contains(t, buf.String(), "stage=spec.plain")
	assert.Contains(t, buf.String(), `msg="Stage started."`)
}
