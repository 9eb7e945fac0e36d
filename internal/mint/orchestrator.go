// Package mint runs batches of sequential mint attempts.
package mint

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"mintrunner/internal/chain"
)

// Minter is the write side of the mint contract.
type Minter interface {
	Mint(ctx context.Context) (chain.MintReceipt, error)
}

// Observer is called synchronously after every recorded attempt.
type Observer interface {
	AttemptRecorded(a Attempt, s Session)
}

// BatchObserver is an Observer that also receives the final session once Run returns,
// whichever way the batch ended.
type BatchObserver interface {
	BatchFinished(s Session)
}

type ObserverFunc func(a Attempt, s Session)

func (f ObserverFunc) AttemptRecorded(a Attempt, s Session) {
	f(a, s)
}

type Options struct {
	// AttemptTimeout bounds submit plus confirmation of a single attempt. Zero waits as
	// long as the confirmation takes.
	AttemptTimeout time.Duration
	// Limiter paces submissions. Nil submits back to back.
	Limiter   *rate.Limiter
	Observers []Observer
	Now       func() time.Time
}

type Orchestrator struct {
	minter Minter
	opts   Options
}

func NewOrchestrator(minter Minter, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{minter: minter, opts: opts}
}

// Run performs up to requested attempts, one at a time. The loop ends early only when
// the chain reports the daily quota as spent, or when ctx is cancelled. requested is
// not checked against the remaining quota.
func (o *Orchestrator) Run(ctx context.Context, requested int) Session {
	if requested < 0 {
		requested = 0
	}
	s := Session{
		ID:        uuid.NewString(),
		Requested: requested,
		StartedAt: o.opts.Now(),
	}
	logger := log.WithField("session", s.ID)
	logger.WithField("requested", requested).Info("Starting batch mint")

	for i := 0; i < requested; i++ {
		if !o.ready(ctx) {
			s.StoppedEarly = true
			s.StopReason = StopReasonInterrupted
			break
		}

		a := o.attempt(ctx, i)
		if a.Outcome == Success {
			s.Successful++
		} else {
			s.Failed++
			logger.WithFields(log.Fields{
				"attempt":  i + 1,
				"category": a.Category,
			}).WithError(a.Err).Debug("Mint attempt failed")
		}
		if a.Category == CategoryQuotaExhausted {
			s.StoppedEarly = true
			s.StopReason = StopReasonDailyLimit
		}

		for _, obs := range o.opts.Observers {
			obs.AttemptRecorded(a, s)
		}
		if s.StoppedEarly {
			break
		}
	}

	for _, obs := range o.opts.Observers {
		if bo, ok := obs.(BatchObserver); ok {
			bo.BatchFinished(s)
		}
	}

	logger.WithFields(log.Fields{
		"successful":    s.Successful,
		"failed":        s.Failed,
		"stopped_early": s.StoppedEarly,
		"stop_reason":   s.StopReason,
	}).Info("Batch mint finished")
	return s
}

func (o *Orchestrator) ready(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if o.opts.Limiter != nil {
		if err := o.opts.Limiter.Wait(ctx); err != nil {
			return false
		}
	}
	return true
}

func (o *Orchestrator) attempt(ctx context.Context, idx int) Attempt {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, o.opts.AttemptTimeout)
	}
	defer cancel()

	start := o.opts.Now()
	receipt, err := o.minter.Mint(attemptCtx)
	a := Attempt{
		Index:    idx,
		Duration: o.opts.Now().Sub(start),
		TxHash:   receipt.TxHash,
	}
	if err != nil {
		a.Outcome = Failure
		a.Category = Classify(err)
		a.Err = err
		return a
	}
	a.Outcome = Success
	a.Category = CategoryNone
	return a
}
