// Package progress derives display values from a mint session and prints them.
package progress

import (
	"time"

	"mintrunner/internal/mint"
)

// Report is the display tuple for one session snapshot.
type Report struct {
	Elapsed        time.Duration
	ElapsedSeconds float64
	RatePerSecond  float64
	Completed      int
	Successful     int
	Failed         int
	Remaining      int
	ETA            time.Duration
}

// Compute is pure: it reads s and now and nothing else.
func Compute(s mint.Session, now time.Time) Report {
	elapsed := now.Sub(s.StartedAt)
	if elapsed < 0 || s.StartedAt.IsZero() {
		elapsed = 0
	}

	r := Report{
		Elapsed:        elapsed,
		ElapsedSeconds: elapsed.Seconds(),
		Completed:      s.Completed(),
		Successful:     s.Successful,
		Failed:         s.Failed,
	}
	if r.ElapsedSeconds > 0 {
		r.RatePerSecond = float64(s.Successful) / r.ElapsedSeconds
	}

	if !s.StoppedEarly && s.Requested > r.Completed {
		r.Remaining = s.Requested - r.Completed
	}
	if r.Remaining > 0 && r.Completed > 0 && elapsed > 0 {
		r.ETA = elapsed / time.Duration(r.Completed) * time.Duration(r.Remaining)
	}
	return r
}
