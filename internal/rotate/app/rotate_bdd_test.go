package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"video_rotate_service/internal/rotate/domain"

	"github.com/cucumber/godog"
)

// rotateScenario 每個 scenario 一份
type rotateScenario struct {
	t      *testing.T
	eng    *fakeEngine
	h      *harness
	result *RunResult
	err    error
}

func (s *rotateScenario) reset() {
	s.eng = newFakeEngine(progressLines()...)
	s.h = nil
	s.result = nil
	s.err = nil
}

// setup 延遲建立 harness，讓 "Given" 可以先調整 fake engine
func (s *rotateScenario) setup(seconds float64) *harness {
	if s.h == nil {
		s.h = newHarness(s.t, s.eng, fixedDuration(seconds), nil)
	}
	return s.h
}

func (s *rotateScenario) engineIsReady() error {
	return s.setup(10).lifecycle.Initialize(context.Background())
}

func (s *rotateScenario) engineFailsWith(msg string) error {
	s.eng.execErr = errors.New(msg)
	return nil
}

func (s *rotateScenario) videoIsSelected(name string, seconds int) error {
	<-s.setup(float64(seconds)).session.Select(name, clip)
	return nil
}

func (s *rotateScenario) rotateBy(angle int) error {
	s.result, s.err = s.setup(10).orchestrator.Rotate(context.Background(), angle)
	return nil
}

func (s *rotateScenario) engineRuns(args string) error {
	got := strings.Join(s.eng.lastArgv(), " ")
	if got != args {
		return fmt.Errorf("engine ran %q, want %q", got, args)
	}
	return nil
}

func (s *rotateScenario) stateIs(phase string, progress float64) error {
	st := s.h.state.Snapshot()
	if string(st.Phase) != phase || st.Progress != progress {
		return fmt.Errorf("state is %s(%v), want %s(%v)", st.Phase, st.Progress, phase, progress)
	}
	return nil
}

func (s *rotateScenario) downloadIsNamed(name string) error {
	if s.err != nil {
		return s.err
	}
	if s.result.Download.FileName != name {
		return fmt.Errorf("download named %q, want %q", s.result.Download.FileName, name)
	}
	if _, ok := s.h.delivery.Take(strings.TrimPrefix(s.result.Download.URL, DownloadPath)); !ok {
		return errors.New("download not available")
	}
	return nil
}

func (s *rotateScenario) rejectedWith(msg string) error {
	if s.err == nil {
		return errors.New("rotation was accepted")
	}
	if !strings.Contains(s.err.Error(), msg) {
		return fmt.Errorf("rejected with %q, want %q", s.err, msg)
	}
	if s.h.eng.lastArgv() != nil && !errors.Is(s.err, domain.ErrEngineExecution) {
		return errors.New("guard rejection reached the engine")
	}
	return nil
}

func TestRotateFeatures(t *testing.T) {
	s := &rotateScenario{t: t}

	suite := godog.TestSuite{
		Name: "rotate",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				s.reset()
				return ctx, nil
			})
			ctx.Step(`^the transcoding engine is ready$`, s.engineIsReady)
			ctx.Step(`^the engine fails with "([^"]*)"$`, s.engineFailsWith)
			ctx.Step(`^a video "([^"]*)" of (\d+) seconds is selected$`, s.videoIsSelected)
			ctx.Step(`^I rotate it by (-?\d+) degrees$`, s.rotateBy)
			ctx.Step(`^the engine runs "([^"]*)"$`, s.engineRuns)
			ctx.Step(`^the state is "([^"]*)" with progress (\d+)$`, s.stateIs)
			ctx.Step(`^the download is named "([^"]*)"$`, s.downloadIsNamed)
			ctx.Step(`^the rotation is rejected with "([^"]*)"$`, s.rejectedWith)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
