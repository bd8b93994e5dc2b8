package main

import (
	"os"

	"video_rotate_service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type engineFlags struct {
	ffmpeg  string
	ffprobe string
	workDir string
	debug   bool
}

func newRootCommand() *cobra.Command {
	flags := &engineFlags{}

	rootCmd := &cobra.Command{
		Use:           "rotate_cli",
		Short:         "Rotate a video by 90, 180 or 270 degrees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zapcore.WarnLevel
			if flags.debug {
				level = zapcore.DebugLevel
			}
			core := zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stderr),
				level,
			)
			logger.Log = logger.NewWithCore(core)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.ffmpeg, "ffmpeg", "", "ffmpeg binary (default: ffmpeg on PATH)")
	rootCmd.PersistentFlags().StringVar(&flags.ffprobe, "ffprobe", "", "ffprobe binary (default: ffprobe on PATH)")
	rootCmd.PersistentFlags().StringVar(&flags.workDir, "workdir", "", "engine working directory (default: temporary)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "log engine output")

	rootCmd.AddCommand(newRotateCommand(flags))
	rootCmd.AddCommand(newProbeCommand(flags))

	return rootCmd
}
