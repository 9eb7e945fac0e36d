package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorKind is the normalized reason a remote call failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindReverted
	KindQuotaExhausted
	KindRejected
	KindNetwork
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindReverted:
		return "reverted"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindRejected:
		return "rejected"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// JSON-RPC codes returned by geth-compatible nodes.
const (
	codeExecutionReverted = 3
	codeServerError       = -32000
)

const revertPrefix = "execution reverted"

// DefaultQuotaMarkers identifies the daily-limit revert of the default contract.
var DefaultQuotaMarkers = []string{"daily"}

// CallError is a remote call failure with its cause reduced to a kind and a reason.
type CallError struct {
	Method string
	Kind   ErrorKind
	Code   int
	Reason string
	TxHash common.Hash
	Err    error
}

func (e *CallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Method, e.Kind)
	if e.Reason != "" {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if e.TxHash != (common.Hash{}) {
		fmt.Fprintf(&b, " tx=%s", e.TxHash.Hex())
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// errorNormalizer turns go-ethereum errors into CallErrors for one contract.
type errorNormalizer struct {
	abi          abi.ABI
	quotaMarkers []string
}

func (n errorNormalizer) normalize(method string, err error) *CallError {
	var existing *CallError
	if errors.As(err, &existing) {
		return existing
	}

	ce := &CallError{Method: method, Kind: KindUnknown, Err: err}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		ce.Code = rpcErr.ErrorCode()
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := n.decodeRevertData(dataErr.ErrorData()); ok {
			ce.Kind = KindReverted
			ce.Reason = reason
		}
	}

	if ce.Kind == KindUnknown {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			ce.Kind = KindTimeout
		case ce.Code == codeExecutionReverted:
			ce.Kind = KindReverted
			ce.Reason = trimRevertPrefix(rpcMessage(err))
		case ce.Code == codeServerError:
			msg := rpcMessage(err)
			if strings.HasPrefix(strings.ToLower(msg), revertPrefix) {
				ce.Kind = KindReverted
				ce.Reason = trimRevertPrefix(msg)
			} else {
				ce.Kind = KindRejected
				ce.Reason = msg
			}
		case isNetworkError(err):
			ce.Kind = KindNetwork
		}
	}

	if ce.Kind == KindReverted && n.isQuotaReason(ce.Reason) {
		ce.Kind = KindQuotaExhausted
	}
	return ce
}

// revertedReceipt builds the error for a mined transaction with status 0. replayErr is
// the result of re-running the call at the inclusion block, which is where the reason
// comes from.
func (n errorNormalizer) revertedReceipt(method string, txHash common.Hash, replayErr error) *CallError {
	ce := &CallError{Method: method, Kind: KindReverted, TxHash: txHash, Reason: "reverted on-chain"}
	if replayErr != nil {
		replayed := n.normalize(method, replayErr)
		if replayed.Kind == KindReverted || replayed.Kind == KindQuotaExhausted {
			ce.Kind = replayed.Kind
			ce.Code = replayed.Code
			ce.Reason = replayed.Reason
		}
	}
	return ce
}

func (n errorNormalizer) decodeRevertData(data interface{}) (string, bool) {
	hexData, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(hexData)
	if err != nil || len(raw) < 4 {
		return "", false
	}
	if reason, err := abi.UnpackRevert(raw); err == nil {
		return reason, true
	}
	var selector [4]byte
	copy(selector[:], raw[:4])
	if custom, err := n.abi.ErrorByID(selector); err == nil {
		return custom.Name, true
	}
	return hexData, true
}

func (n errorNormalizer) isQuotaReason(reason string) bool {
	if reason == "" {
		return false
	}
	lower := strings.ToLower(reason)
	for _, marker := range n.quotaMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func rpcMessage(err error) string {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Error()
	}
	return err.Error()
}

func trimRevertPrefix(msg string) string {
	if !strings.HasPrefix(strings.ToLower(msg), revertPrefix) {
		return msg
	}
	msg = msg[len(revertPrefix):]
	return strings.TrimSpace(strings.TrimPrefix(msg, ":"))
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
