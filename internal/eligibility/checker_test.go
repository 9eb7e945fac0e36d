package eligibility

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintrunner/internal/chain"
)

var operator = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestCheckNotAllowlisted(t *testing.T) {
	fake := &chain.FakeContract{Allowed: false, Limit: 100}

	st, err := NewChecker(fake, Options{}).Check(context.Background(), operator)
	require.NoError(t, err)
	assert.False(t, st.Allowlisted)
	assert.Zero(t, st.Remaining)
	assert.False(t, st.CanMint())
	assert.Zero(t, fake.DailyLimitCalls, "quota is not read for non-allowlisted accounts")
}

func TestCheckRemaining(t *testing.T) {
	fake := &chain.FakeContract{Allowed: true, Limit: 500, Minted: 120}

	st, err := NewChecker(fake, Options{}).Check(context.Background(), operator)
	require.NoError(t, err)
	assert.Equal(t, Status{
		Allowlisted:         true,
		DailyLimit:          500,
		MintedToday:         120,
		ReportedMintedToday: 120,
		Remaining:           380,
	}, st)
	assert.True(t, st.CanMint())
}

func TestCheckClampsAtZero(t *testing.T) {
	fake := &chain.FakeContract{Allowed: true, Limit: 10, Minted: 15}

	st, err := NewChecker(fake, Options{}).Check(context.Background(), operator)
	require.NoError(t, err)
	assert.Zero(t, st.Remaining)
	assert.False(t, st.CanMint())
}

func TestCheckOverrideIsExplicit(t *testing.T) {
	fake := &chain.FakeContract{Allowed: true, Limit: 500, Minted: 500}

	st, err := NewChecker(fake, Options{AssumeZeroMintedToday: true}).Check(context.Background(), operator)
	require.NoError(t, err)
	assert.True(t, st.MintedTodayOverridden)
	assert.Equal(t, int64(500), st.ReportedMintedToday)
	assert.Zero(t, st.MintedToday)
	assert.Equal(t, int64(500), st.Remaining)
	assert.Equal(t, 1, fake.MintedTodayCalls, "the true value is still read")
}

func TestCheckIsIdempotent(t *testing.T) {
	fake := &chain.FakeContract{Allowed: true, Limit: 50, Minted: 7}
	checker := NewChecker(fake, Options{})

	first, err := checker.Check(context.Background(), operator)
	require.NoError(t, err)
	second, err := checker.Check(context.Background(), operator)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Zero(t, fake.MintCalls)
}

func TestCheckRemoteReadErrorNamesCall(t *testing.T) {
	cause := errors.New("connection refused")
	for _, call := range []string{"allowlist", "dailyLimit", "mintedToday"} {
		t.Run(call, func(t *testing.T) {
			fake := &chain.FakeContract{
				Allowed:  true,
				Limit:    10,
				ReadErrs: map[string]error{call: cause},
			}

			_, err := NewChecker(fake, Options{}).Check(context.Background(), operator)
			var rre *RemoteReadError
			require.True(t, errors.As(err, &rre))
			assert.Equal(t, call, rre.Call)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestSaturate(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	assert.Equal(t, int64(1<<63-1), saturate(huge))
	assert.Zero(t, saturate(nil))
	assert.Zero(t, saturate(big.NewInt(-3)))
	assert.Equal(t, int64(9), saturate(big.NewInt(9)))
}
