package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var _ Contract = (*MintContract)(nil)

// MintContract is the typed facade over the allowlisted mint contract.
type MintContract struct {
	gw       Gateway
	abi      abi.ABI
	address  common.Address
	gasLimit uint64
	errs     errorNormalizer
}

type MintContractConfig struct {
	Address string
	// ABI replaces MintContractABI. Useful when the deployed contract declares custom
	// errors that should be decoded by name.
	ABI string
	// GasLimit is the fixed ceiling for mint(). It depends on the contract's call cost.
	GasLimit uint64
	// QuotaMarkers are matched case-insensitively against decoded revert reasons. Empty
	// means DefaultQuotaMarkers.
	QuotaMarkers []string
}

func NewMintContract(gw Gateway, cfg MintContractConfig) (*MintContract, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Address)
	}
	if cfg.GasLimit == 0 {
		return nil, fmt.Errorf("gas limit is required")
	}

	rawABI := cfg.ABI
	if strings.TrimSpace(rawABI) == "" {
		rawABI = MintContractABI
	}
	parsedABI, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	for _, name := range []string{methodMint, methodAllowlist, methodDailyLimit, methodMintedToday} {
		if _, ok := parsedABI.Methods[name]; !ok {
			return nil, fmt.Errorf("abi is missing method %s", name)
		}
	}

	markers := nonEmpty(cfg.QuotaMarkers)
	if len(markers) == 0 {
		markers = DefaultQuotaMarkers
	}

	return &MintContract{
		gw:       gw,
		abi:      parsedABI,
		address:  common.HexToAddress(cfg.Address),
		gasLimit: cfg.GasLimit,
		errs: errorNormalizer{
			abi:          parsedABI,
			quotaMarkers: markers,
		},
	}, nil
}

func (c *MintContract) Address() common.Address {
	return c.address
}

func (c *MintContract) Allowlist(ctx context.Context, user common.Address) (bool, error) {
	out, err := c.call(ctx, methodAllowlist, user)
	if err != nil {
		return false, err
	}
	allowed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("decode %s: unexpected type %T", methodAllowlist, out)
	}
	return allowed, nil
}

func (c *MintContract) DailyLimit(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, methodDailyLimit)
}

func (c *MintContract) MintedToday(ctx context.Context, user common.Address) (*big.Int, error) {
	return c.callUint(ctx, methodMintedToday, user)
}

// Mint submits mint() with zero value and the fixed gas ceiling, then waits for inclusion.
// Gas is never estimated: estimation against this contract reverts spuriously for
// allowlisted callers close to their quota.
func (c *MintContract) Mint(ctx context.Context) (MintReceipt, error) {
	input, err := c.abi.Pack(methodMint)
	if err != nil {
		return MintReceipt{}, fmt.Errorf("pack %s: %w", methodMint, err)
	}

	receipt, err := c.gw.SubmitAndWait(ctx, TxRequest{
		To:       c.address,
		Data:     input,
		Value:    new(big.Int),
		GasLimit: c.gasLimit,
	})
	if err != nil {
		return MintReceipt{}, c.errs.normalize(methodMint, err)
	}

	res := MintReceipt{
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
		Logs:    len(receipt.Logs),
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status == types.ReceiptStatusFailed {
		var parent *big.Int
		if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
			parent = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
		}
		_, replayErr := c.gw.Call(ctx, c.address, input, parent)
		return res, c.errs.revertedReceipt(methodMint, receipt.TxHash, replayErr)
	}
	return res, nil
}

func (c *MintContract) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode %s: unexpected type %T", method, out)
	}
	return v, nil
}

func (c *MintContract) call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.gw.Call(ctx, c.address, input, nil)
	if err != nil {
		return nil, c.errs.normalize(method, err)
	}
	values, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("decode %s: expected 1 value, got %d", method, len(values))
	}
	return values[0], nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
