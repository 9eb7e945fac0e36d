package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var _ Contract = (*FakeContract)(nil)

// FakeContract replays scripted answers in place of the on-chain contract in tests.
type FakeContract struct {
	Allowed bool
	Limit   int64
	Minted  int64

	// ReadErrs fails the named read call ("allowlist", "dailyLimit", "mintedToday").
	ReadErrs map[string]error
	// MintResults is consumed one entry per Mint call; nil entries and calls past the
	// end succeed.
	MintResults []error

	AllowlistCalls   int
	DailyLimitCalls  int
	MintedTodayCalls int
	MintCalls        int
}

func (f *FakeContract) Allowlist(_ context.Context, user common.Address) (bool, error) {
	f.AllowlistCalls++
	if err := f.ReadErrs[methodAllowlist]; err != nil {
		return false, err
	}
	if user == (common.Address{}) {
		return false, fmt.Errorf("missing user address")
	}
	return f.Allowed, nil
}

func (f *FakeContract) DailyLimit(context.Context) (*big.Int, error) {
	f.DailyLimitCalls++
	if err := f.ReadErrs[methodDailyLimit]; err != nil {
		return nil, err
	}
	return big.NewInt(f.Limit), nil
}

func (f *FakeContract) MintedToday(context.Context, common.Address) (*big.Int, error) {
	f.MintedTodayCalls++
	if err := f.ReadErrs[methodMintedToday]; err != nil {
		return nil, err
	}
	return big.NewInt(f.Minted), nil
}

func (f *FakeContract) Mint(context.Context) (MintReceipt, error) {
	idx := f.MintCalls
	f.MintCalls++
	if idx < len(f.MintResults) && f.MintResults[idx] != nil {
		return MintReceipt{}, f.MintResults[idx]
	}
	f.Minted++
	return MintReceipt{
		TxHash:      fakeHash(idx),
		BlockNumber: uint64(idx + 1),
		GasUsed:     21000,
	}, nil
}

// NewRevertError builds the CallError a reverted call with the given reason normalizes to.
func NewRevertError(method, reason string, quotaMarkers ...string) *CallError {
	n := errorNormalizer{quotaMarkers: quotaMarkers}
	kind := KindReverted
	if n.isQuotaReason(reason) {
		kind = KindQuotaExhausted
	}
	return &CallError{Method: method, Kind: kind, Code: codeExecutionReverted, Reason: reason}
}

func fakeHash(idx int) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(idx))
	return sha256.Sum256(buf[:])
}
