package mint

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Outcome int

const (
	Success Outcome = iota
	Failure
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

const (
	StopReasonDailyLimit  = "daily limit reached"
	StopReasonInterrupted = "interrupted"
)

// Attempt is one submit-and-confirm cycle. It is not modified after it is recorded.
type Attempt struct {
	Index    int
	Outcome  Outcome
	Category Category
	Err      error
	Duration time.Duration
	TxHash   common.Hash
}

func (a Attempt) DurationMs() int64 {
	return a.Duration.Milliseconds()
}

// Session accumulates the statistics of one batch. Only the orchestrator writes it;
// observers get copies.
type Session struct {
	ID           string
	Requested    int
	Successful   int
	Failed       int
	StartedAt    time.Time
	StoppedEarly bool
	StopReason   string
}

func (s Session) Completed() int {
	return s.Successful + s.Failed
}
