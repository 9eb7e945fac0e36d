package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x075893707e168162234b62a5b39650e124ff3321"

type stubGateway struct {
	address  common.Address
	outputs  map[string][]byte
	callErrs map[string]error
	calls    []stubCall

	receipt   *types.Receipt
	submitErr error
	submitted []TxRequest
}

type stubCall struct {
	selector string
	block    *big.Int
}

func (s *stubGateway) Address() common.Address { return s.address }

func (s *stubGateway) Balance(context.Context) (*big.Int, error) { return big.NewInt(0), nil }

func (s *stubGateway) Call(_ context.Context, _ common.Address, data []byte, block *big.Int) ([]byte, error) {
	sel := hexutil.Encode(data[:4])
	s.calls = append(s.calls, stubCall{selector: sel, block: block})
	if err := s.callErrs[sel]; err != nil {
		return nil, err
	}
	return s.outputs[sel], nil
}

func (s *stubGateway) SubmitAndWait(_ context.Context, req TxRequest) (*types.Receipt, error) {
	s.submitted = append(s.submitted, req)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.receipt, nil
}

type rpcDataError struct {
	code int
	msg  string
	data interface{}
}

func (e rpcDataError) Error() string          { return e.msg }
func (e rpcDataError) ErrorCode() int         { return e.code }
func (e rpcDataError) ErrorData() interface{} { return e.data }

func selectorOf(signature string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(signature))[:4])
}

func revertData(t *testing.T, reason string) string {
	t.Helper()
	strTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: strTy}}.Pack(reason)
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return hexutil.Encode(append(selector, packed...))
}

func packOutput(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(MintContractABI))
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func newTestContract(t *testing.T, gw Gateway, rawABI string) *MintContract {
	t.Helper()
	c, err := NewMintContract(gw, MintContractConfig{
		Address:      testContract,
		ABI:          rawABI,
		GasLimit:     150000,
		QuotaMarkers: DefaultQuotaMarkers,
	})
	require.NoError(t, err)
	return c
}

func TestNewMintContractValidation(t *testing.T) {
	gw := &stubGateway{}

	_, err := NewMintContract(gw, MintContractConfig{Address: "nope", GasLimit: 1})
	assert.Error(t, err)

	_, err = NewMintContract(gw, MintContractConfig{Address: testContract})
	assert.Error(t, err, "gas limit must be explicit")

	_, err = NewMintContract(gw, MintContractConfig{
		Address:  testContract,
		GasLimit: 1,
		ABI:      `[{"inputs":[],"name":"mint","outputs":[],"stateMutability":"payable","type":"function"}]`,
	})
	assert.ErrorContains(t, err, "missing method")
}

func TestEmptyQuotaMarkersFallBackToDefault(t *testing.T) {
	for _, markers := range [][]string{nil, {}, {"", "  "}} {
		gw := &stubGateway{
			submitErr: rpcDataError{
				code: codeExecutionReverted,
				msg:  "execution reverted: Daily limit exceeded",
				data: revertData(t, "Daily limit exceeded"),
			},
		}
		c, err := NewMintContract(gw, MintContractConfig{
			Address:      testContract,
			GasLimit:     150000,
			QuotaMarkers: markers,
		})
		require.NoError(t, err)

		_, err = c.Mint(context.Background())
		var ce *CallError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, KindQuotaExhausted, ce.Kind, "markers %q", markers)
	}
}

func TestReads(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	gw := &stubGateway{
		outputs: map[string][]byte{
			selectorOf("allowlist(address)"):   packOutput(t, methodAllowlist, true),
			selectorOf("dailyLimit()"):         packOutput(t, methodDailyLimit, big.NewInt(1000)),
			selectorOf("mintedToday(address)"): packOutput(t, methodMintedToday, big.NewInt(42)),
		},
	}
	c := newTestContract(t, gw, "")
	ctx := context.Background()

	allowed, err := c.Allowlist(ctx, user)
	require.NoError(t, err)
	assert.True(t, allowed)

	limit, err := c.DailyLimit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), limit.Int64())

	minted, err := c.MintedToday(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(42), minted.Int64())

	for _, call := range gw.calls {
		assert.Nil(t, call.block, "reads use the latest block")
	}
}

func TestReadFailureIsNormalized(t *testing.T) {
	gw := &stubGateway{
		callErrs: map[string]error{
			selectorOf("dailyLimit()"): rpcDataError{code: codeServerError, msg: "header not found"},
		},
	}
	c := newTestContract(t, gw, "")

	_, err := c.DailyLimit(context.Background())
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, methodDailyLimit, ce.Method)
	assert.Equal(t, KindRejected, ce.Kind)
}

func TestReadEmptyOutputFails(t *testing.T) {
	c := newTestContract(t, &stubGateway{}, "")
	_, err := c.Allowlist(context.Background(), common.Address{1})
	assert.ErrorContains(t, err, "decode allowlist")
}

func TestMintSubmitsFixedGasAndZeroValue(t *testing.T) {
	gw := &stubGateway{
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      common.HexToHash("0x01"),
			BlockNumber: big.NewInt(7),
			GasUsed:     51234,
			Logs:        []*types.Log{{}, {}},
		},
	}
	c := newTestContract(t, gw, "")

	res, err := c.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.BlockNumber)
	assert.Equal(t, uint64(51234), res.GasUsed)
	assert.Equal(t, 2, res.Logs)

	require.Len(t, gw.submitted, 1)
	req := gw.submitted[0]
	assert.Equal(t, uint64(150000), req.GasLimit)
	assert.Equal(t, 0, req.Value.Sign())
	assert.Equal(t, selectorOf("mint()"), hexutil.Encode(req.Data))
	assert.Equal(t, common.HexToAddress(testContract), req.To)
}

func TestMintSendRevertDailyLimit(t *testing.T) {
	gw := &stubGateway{
		submitErr: rpcDataError{
			code: codeExecutionReverted,
			msg:  "execution reverted: daily limit exceeded",
			data: revertData(t, "daily limit exceeded"),
		},
	}
	c := newTestContract(t, gw, "")

	_, err := c.Mint(context.Background())
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindQuotaExhausted, ce.Kind)
	assert.Equal(t, "daily limit exceeded", ce.Reason)
}

func TestMintRevertedReceiptReplaysAtParentBlock(t *testing.T) {
	txHash := common.HexToHash("0xbeef")
	gw := &stubGateway{
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			TxHash:      txHash,
			BlockNumber: big.NewInt(10),
		},
		callErrs: map[string]error{
			selectorOf("mint()"): rpcDataError{
				code: codeExecutionReverted,
				msg:  "execution reverted",
				data: revertData(t, "Daily mint limit reached"),
			},
		},
	}
	c := newTestContract(t, gw, "")

	_, err := c.Mint(context.Background())
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindQuotaExhausted, ce.Kind)
	assert.Equal(t, txHash, ce.TxHash)

	require.Len(t, gw.calls, 1)
	assert.Equal(t, int64(9), gw.calls[0].block.Int64())
}

func TestMintRevertedReceiptWithoutReason(t *testing.T) {
	gw := &stubGateway{
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(3)},
	}
	c := newTestContract(t, gw, "")

	_, err := c.Mint(context.Background())
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindReverted, ce.Kind)
	assert.Equal(t, "reverted on-chain", ce.Reason)
}

func TestMintCustomErrorDecodedByName(t *testing.T) {
	customABI := strings.TrimSuffix(strings.TrimSpace(MintContractABI), "]") +
		`,{"inputs":[],"name":"DailyLimitExceeded","type":"error"}]`
	gw := &stubGateway{
		submitErr: rpcDataError{
			code: codeExecutionReverted,
			msg:  "execution reverted",
			data: selectorOf("DailyLimitExceeded()"),
		},
	}
	c := newTestContract(t, gw, customABI)

	_, err := c.Mint(context.Background())
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "DailyLimitExceeded", ce.Reason)
	assert.Equal(t, KindQuotaExhausted, ce.Kind)
}
