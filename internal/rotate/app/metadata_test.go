package app

import (
	"context"
	"os/exec"
	"testing"

	"video_rotate_service/internal/rotate/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    float64
		wantErr bool
	}{
		{"ok", `{"format":{"format_name":"mov,mp4","duration":"12.480000"}}`, 12.48, false},
		{"na", `{"format":{"duration":"N/A"}}`, 0, true},
		{"missing", `{"format":{}}`, 0, true},
		{"zero", `{"format":{"duration":"0.000"}}`, 0, true},
		{"garbage", `not json`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeDuration([]byte(tt.out))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func fakeProbe(t *testing.T, script string) {
	t.Helper()
	orig := probeCommand
	probeCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
	t.Cleanup(func() { probeCommand = orig })
}

func TestFFprobeExtractor_Duration(t *testing.T) {
	fakeProbe(t, `cat >/dev/null; echo '{"format":{"duration":"3.5"}}'`)

	d, err := NewFFprobeExtractor("").Duration(context.Background(), "a.mp4", clip)
	require.NoError(t, err)
	assert.Equal(t, 3.5, d)
}

func TestFFprobeExtractor_Failure(t *testing.T) {
	fakeProbe(t, `cat >/dev/null; echo 'pipe:0: Invalid data found' >&2; exit 1`)

	_, err := NewFFprobeExtractor("ffprobe").Duration(context.Background(), "a.mp4", clip)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)
	assert.Contains(t, err.Error(), "Invalid data found")
}
