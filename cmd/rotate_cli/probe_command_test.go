package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"video_rotate_service/internal/rotate/app"
	"video_rotate_service/internal/rotate/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Clip.MOV")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	known := app.MetadataExtractorFunc(func(context.Context, string, []byte) (float64, error) { return 4.5, nil })
	assert.Equal(t, []string{"Clip.MOV", "output.mov", "5 B", "4.500s"}, probeRow(context.Background(), known, path))

	unknown := app.MetadataExtractorFunc(func(context.Context, string, []byte) (float64, error) {
		return 0, domain.ErrMetadataUnavailable
	})
	assert.Equal(t, "unknown", probeRow(context.Background(), unknown, path)[3])

	row := probeRow(context.Background(), known, filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Equal(t, "-", row[2])
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"File", "Duration"}, [][]string{{"a.mp4", "1.000s"}, {"b.mp4"}}, 2)
	assert.True(t, strings.Contains(out, "a.mp4"))
	assert.True(t, strings.Contains(out, "DURATION") || strings.Contains(out, "Duration"))
	assert.Empty(t, renderTable(nil, nil))
}
