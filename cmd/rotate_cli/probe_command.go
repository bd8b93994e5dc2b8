package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"video_rotate_service/internal/rotate/app"
	"video_rotate_service/internal/rotate/domain"

	"github.com/spf13/cobra"
)

func newProbeCommand(flags *engineFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>...",
		Short: "Print the duration and output name a rotation would produce",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extractor := app.NewFFprobeExtractor(flags.ffprobe)
			rows := make([][]string, 0, len(args))
			for _, path := range args {
				rows = append(rows, probeRow(cmd.Context(), extractor, path))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"File", "Output", "Size", "Duration"}, rows, 3, 4))
			return nil
		},
	}
}

func probeRow(ctx context.Context, extractor app.MetadataExtractor, path string) []string {
	name := filepath.Base(path)
	output := domain.OutputFileName(domain.Extension(name))

	data, err := os.ReadFile(path)
	if err != nil {
		return []string{name, output, "-", fmt.Sprintf("unreadable: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	size := fmt.Sprintf("%d B", len(data))
	d, err := extractor.Duration(ctx, name, data)
	if err != nil {
		return []string{name, output, size, "unknown"}
	}
	return []string{name, output, size, fmt.Sprintf("%.3fs", d)}
}
