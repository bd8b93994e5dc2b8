package app

import (
	"math"
	"regexp"
	"strconv"

	"video_rotate_service/pkg/metrics"
)

// time=HH:MM:SS.fff anywhere in the line, optional spaces after '='
var timePattern = regexp.MustCompile(`time=\s*(\d+):(\d+):(\d+\.\d+)`)

// ParseElapsed extract elapsed seconds from one engine log line
func ParseElapsed(line string) (float64, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hours, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

// Estimate min(100, elapsed/duration*100); no estimate without a positive duration
func Estimate(elapsed, duration float64) (float64, bool) {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, false
	}
	pct := elapsed / duration * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct, true
}

// DurationFunc current total duration, false while unknown
type DurationFunc func() (float64, bool)

// ProgressEstimator turns engine log lines into percentages.
// The duration is read per line because metadata may resolve after the run started.
// A timestamp lower than a previous one is passed through unchanged.
type ProgressEstimator struct {
	duration DurationFunc
}

// NewProgressEstimator create ProgressEstimator
func NewProgressEstimator(duration DurationFunc) *ProgressEstimator {
	return &ProgressEstimator{duration: duration}
}

// Observe one line; ok is false for lines without a timestamp or without a known duration
func (p *ProgressEstimator) Observe(line string) (float64, bool) {
	elapsed, ok := ParseElapsed(line)
	if !ok {
		metrics.EngineLogLinesTotal.WithLabelValues("no").Inc()
		return 0, false
	}
	metrics.EngineLogLinesTotal.WithLabelValues("yes").Inc()

	if p.duration == nil {
		return 0, false
	}
	total, known := p.duration()
	if !known {
		return 0, false
	}
	return Estimate(elapsed, total)
}
