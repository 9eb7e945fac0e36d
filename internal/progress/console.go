package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"mintrunner/internal/mint"
)

var _ mint.Observer = (*Console)(nil)

var rule = strings.Repeat("━", 60)

type ConsoleOptions struct {
	// ProgressEvery prints a summary line after every N completed attempts. 0 disables it.
	ProgressEvery int
	// ErrorSampleEvery prints the error of every Nth failure. 0 disables it.
	ErrorSampleEvery int
	// Unit names what is being minted in console text.
	Unit string
	Now  func() time.Time
}

// Console is the compact operator stream: one marker per attempt plus periodic summaries.
type Console struct {
	out  io.Writer
	opts ConsoleOptions
}

func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Unit == "" {
		opts.Unit = "units"
	}
	return &Console{out: out, opts: opts}
}

func (c *Console) Begin(requested int) {
	fmt.Fprintf(c.out, "\n🚀 Starting batch mint of %d %s...\n%s\n", requested, c.opts.Unit, rule)
}

func (c *Console) AttemptRecorded(a mint.Attempt, s mint.Session) {
	if a.Outcome == mint.Success {
		fmt.Fprint(c.out, ".")
	} else {
		fmt.Fprint(c.out, "x")
		if !s.StoppedEarly && c.opts.ErrorSampleEvery > 0 && s.Failed%c.opts.ErrorSampleEvery == 0 {
			fmt.Fprintf(c.out, "\n❌ Error on mint %d: %v\n", a.Index+1, a.Err)
		}
	}

	if s.StoppedEarly {
		if s.StopReason == mint.StopReasonDailyLimit {
			fmt.Fprintf(c.out, "\n\n⚠️  Daily limit reached after %d successful mints\n", s.Successful)
		}
		return
	}

	completed := s.Completed()
	if c.opts.ProgressEvery > 0 && completed%c.opts.ProgressEvery == 0 && completed < s.Requested {
		r := Compute(s, c.opts.Now())
		fmt.Fprintf(c.out, "\n📊 Progress: %d/%d (%d successful, %d failed) - %.1f %s/sec, ETA %s\n",
			completed, s.Requested, r.Successful, r.Failed, r.RatePerSecond, c.opts.Unit, formatETA(r.ETA))
	}
}

// Summary prints the end-of-batch report.
func (c *Console) Summary(s mint.Session) {
	r := Compute(s, c.opts.Now())
	fmt.Fprintf(c.out, "\n%s\n", rule)
	if s.StoppedEarly {
		fmt.Fprintf(c.out, "\n⏹️  Batch mint stopped early: %s\n", s.StopReason)
	} else {
		fmt.Fprintf(c.out, "\n✅ Batch minting complete!\n")
	}
	fmt.Fprintf(c.out, "📊 Results: %d successful, %d failed (of %d requested)\n", r.Successful, r.Failed, s.Requested)
	fmt.Fprintf(c.out, "⏱️  Total time: %.1f seconds\n", r.ElapsedSeconds)
	fmt.Fprintf(c.out, "💨 Average rate: %.2f %s/second\n", r.RatePerSecond, c.opts.Unit)
	if r.Successful > 0 {
		fmt.Fprintf(c.out, "\n🎉 Successfully minted %d %s!\n", r.Successful, c.opts.Unit)
	}
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	return d.Round(time.Second).String()
}
