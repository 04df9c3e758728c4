package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "span_test.txt")
	require.NoError(t, Init("mediaflow", "0.0.1", fname))

	_, span := StartSpan(context.Background(), "workflow.ManagerApprove", "INTERNAL")
	span.WithAttributes(map[string]string{"request": "1", "outcome": "Applied"})
	EndSpan(span, nil)

	_, failed := StartSpan(context.Background(), "workflow.Submit", "")
	EndSpan(failed, errors.New("store unavailable"))

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workflow.ManagerApprove")
	assert.Contains(t, string(data), "store unavailable")
}

func TestNilSpan(t *testing.T) {
	var span *Span
	assert.Nil(t, span.WithAttributes(map[string]string{"k": "v"}))
	assert.NotPanics(t, func() {
		span.SetStatus(nil)
		EndSpan(span, nil)
	})
}
