// Package eligibility decides whether, and how many times, the operator may mint now.
package eligibility

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// Reader is the read side of the mint contract.
type Reader interface {
	Allowlist(ctx context.Context, user common.Address) (bool, error)
	DailyLimit(ctx context.Context) (*big.Int, error)
	MintedToday(ctx context.Context, user common.Address) (*big.Int, error)
}

// Status is an immutable snapshot of the operator's quota.
type Status struct {
	Allowlisted bool
	DailyLimit  int64
	// MintedToday is the value Remaining was computed from. It equals
	// ReportedMintedToday unless the override was applied.
	MintedToday           int64
	ReportedMintedToday   int64
	MintedTodayOverridden bool
	Remaining             int64
}

// CanMint reports whether a batch may be offered at all.
func (s Status) CanMint() bool {
	return s.Allowlisted && s.Remaining > 0
}

// RemoteReadError is a failed pre-flight read. It names the call that failed.
type RemoteReadError struct {
	Call string
	Err  error
}

func (e *RemoteReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Call, e.Err)
}

func (e *RemoteReadError) Unwrap() error {
	return e.Err
}

type Options struct {
	// AssumeZeroMintedToday ignores the contract's mintedToday value when computing
	// Remaining. The upstream counter has been seen to lag; the true value is still read
	// and logged.
	AssumeZeroMintedToday bool
}

type Checker struct {
	reader Reader
	opts   Options
}

func NewChecker(reader Reader, opts Options) *Checker {
	return &Checker{reader: reader, opts: opts}
}

// Check reads allowlist membership and quota for addr. It never retries and never writes.
func (c *Checker) Check(ctx context.Context, addr common.Address) (Status, error) {
	allowed, err := c.reader.Allowlist(ctx, addr)
	if err != nil {
		return Status{}, &RemoteReadError{Call: "allowlist", Err: err}
	}
	if !allowed {
		return Status{Allowlisted: false, Remaining: 0}, nil
	}

	limit, err := c.reader.DailyLimit(ctx)
	if err != nil {
		return Status{}, &RemoteReadError{Call: "dailyLimit", Err: err}
	}
	minted, err := c.reader.MintedToday(ctx, addr)
	if err != nil {
		return Status{}, &RemoteReadError{Call: "mintedToday", Err: err}
	}

	st := Status{
		Allowlisted:         true,
		DailyLimit:          saturate(limit),
		ReportedMintedToday: saturate(minted),
	}
	st.MintedToday = st.ReportedMintedToday

	if c.opts.AssumeZeroMintedToday {
		log.WithFields(log.Fields{
			"address":      addr.Hex(),
			"minted_today": st.ReportedMintedToday,
		}).Warn("Ignoring on-chain mintedToday (assume-zero-minted is set)")
		st.MintedToday = 0
		st.MintedTodayOverridden = true
	}

	st.Remaining = st.DailyLimit - st.MintedToday
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	return st, nil
}

// saturate maps a uint256 onto int64, clamping values that do not fit.
func saturate(v *big.Int) int64 {
	switch {
	case v == nil || v.Sign() <= 0:
		return 0
	case v.IsInt64():
		return v.Int64()
	default:
		return int64(^uint64(0) >> 1)
	}
}
