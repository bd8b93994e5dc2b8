package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video_rotate_service/internal/rotate/app"
	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/engine"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newRotateCommand(flags *engineFlags) *cobra.Command {
	var angle int
	var outDir string

	cmd := &cobra.Command{
		Use:   "rotate <file>",
		Short: "Rotate a video and write output.<ext> into the output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (domain.RotationRequest{AngleDegrees: angle}).Validate(); err != nil {
				return fmt.Errorf("%w (supported: %v)", err, domain.SupportedAngles())
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}

			ws, err := engine.NewWorkspace(flags.workDir)
			if err != nil {
				return err
			}
			if flags.workDir == "" {
				defer os.RemoveAll(ws.Dir())
			}
			eng := engine.NewFFmpegEngine(flags.ffmpeg, ws)
			lifecycle := app.NewLifecycle(eng, nil, nil)
			if err := lifecycle.Initialize(cmd.Context()); err != nil {
				return err
			}

			session := app.NewSession(app.NewFFprobeExtractor(flags.ffprobe), 30*time.Second)
			<-session.Select(filepath.Base(args[0]), data)
			if _, ok := session.Duration(); !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "duration unknown, progress will not be estimated")
			}

			state := app.NewStateStore()
			orchestrator := app.NewOrchestrator(lifecycle, session, state, ws, app.NewFileDelivery(outDir))
			defer orchestrator.Close()

			states, cancel := state.Subscribe(16)
			rendered := make(chan struct{})
			go func() {
				defer close(rendered)
				renderProgress(cmd.ErrOrStderr(), states)
			}()

			res, err := orchestrator.Rotate(cmd.Context(), angle)
			cancel()
			<-rendered
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimPrefix(res.Download.URL, "file://"))
			return nil
		},
	}

	cmd.Flags().IntVar(&angle, "angle", 90, "rotation angle: 90, 180 or 270")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	return cmd
}

// renderProgress draws a bar on terminals and plain percentage lines otherwise
func renderProgress(w io.Writer, states <-chan domain.ProcessingState) {
	if !isTerminal(w) {
		last := -10
		for st := range states {
			pct := int(st.Progress)
			if st.Processing() && pct/10 != last/10 {
				fmt.Fprintf(w, "progress %d%%\n", pct)
				last = pct
			}
		}
		return
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("rotating"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	for st := range states {
		switch st.Phase {
		case domain.PhaseProcessing:
			_ = bar.Set(int(st.Progress))
		case domain.PhaseDone:
			_ = bar.Finish()
		}
	}
	_ = bar.Close()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
