package fs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/mediaflow/internal/clock"
)

func TestSender(t *testing.T) {
	defer clock.Freeze(time.Date(2025, 11, 2, 17, 11, 47, 0, time.UTC))()
	ctx := context.Background()
	fs := afs.New()
	dir := t.TempDir()

	sender, err := New(ctx, fs, dir, "noreply@local.test", "RMPortal")
	require.NoError(t, err)
	require.NoError(t, sender.Send(ctx, "alice@local.test", "Your request RM-1 was submitted", "<p>Dear Alice Ahmed,</p>"))
	assert.Error(t, sender.Send(ctx, "", "no recipient", ""))

	objects, err := fs.List(ctx, dir)
	require.NoError(t, err)
	var files []string
	for _, object := range objects {
		if !object.IsDir() {
			files = append(files, object.URL())
		}
	}
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".eml"))
	assert.Contains(t, files[0], "20251102T171147.000-")

	data, err := fs.DownloadWithURL(ctx, files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "To: alice@local.test")
	assert.Contains(t, string(data), "<p>Dear Alice Ahmed,</p>")
}
