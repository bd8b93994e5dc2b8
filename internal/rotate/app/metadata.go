package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"video_rotate_service/internal/rotate/domain"
)

// MetadataExtractor derive the duration (seconds) of a media blob
type MetadataExtractor interface {
	Duration(ctx context.Context, fileName string, data []byte) (float64, error)
}

// MetadataExtractorFunc adapter
type MetadataExtractorFunc func(ctx context.Context, fileName string, data []byte) (float64, error)

// Duration implements MetadataExtractor
func (f MetadataExtractorFunc) Duration(ctx context.Context, fileName string, data []byte) (float64, error) {
	return f(ctx, fileName, data)
}

// ffprobeOutput the part of `ffprobe -show_format -of json` we read
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// FFprobeExtractor reads the blob from stdin, nothing touches disk
type FFprobeExtractor struct {
	binary string
}

// NewFFprobeExtractor binary 為空時使用 PATH 上的 ffprobe
func NewFFprobeExtractor(binary string) *FFprobeExtractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &FFprobeExtractor{binary: binary}
}

// 讓測試可以替換
var probeCommand = exec.CommandContext

// Duration implements MetadataExtractor
func (f *FFprobeExtractor) Duration(ctx context.Context, fileName string, data []byte) (float64, error) {
	cmd := probeCommand(ctx, f.binary, "-v", "error", "-hide_banner", "-show_format", "-of", "json", "-i", "pipe:0")
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s: %w", fileName, err, strings.TrimSpace(stderr.String()), domain.ErrMetadataUnavailable)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out []byte) (float64, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %v: %w", err, domain.ErrMetadataUnavailable)
	}
	raw := strings.TrimSpace(probe.Format.Duration)
	if raw == "" || strings.EqualFold(raw, "N/A") {
		return 0, fmt.Errorf("ffprobe: no duration: %w", domain.ErrMetadataUnavailable)
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("ffprobe: bad duration %q: %w", raw, domain.ErrMetadataUnavailable)
	}
	return d, nil
}
