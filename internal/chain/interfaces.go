package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Gateway is the account-bound view of the chain that the contract facade talks through.
type Gateway interface {
	Address() common.Address
	Balance(ctx context.Context) (*big.Int, error)
	Call(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error)
	SubmitAndWait(ctx context.Context, req TxRequest) (*types.Receipt, error)
}

// Contract abstracts the allowlisted mint contract.
type Contract interface {
	Allowlist(ctx context.Context, user common.Address) (bool, error)
	DailyLimit(ctx context.Context) (*big.Int, error)
	MintedToday(ctx context.Context, user common.Address) (*big.Int, error)
	Mint(ctx context.Context) (MintReceipt, error)
}

// HealthChecker is implemented by gateways that can probe the RPC endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int // nil means zero
	GasLimit uint64   // must be non-zero; no estimation is done
}

type MintReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Logs        int
}
