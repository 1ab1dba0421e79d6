package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/internal/common"
)

func TestLookupOrCreateFirstNameWins(t *testing.T) {
	l := New(10)

	acc, err := l.LookupOrCreate("alice", 3)
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Name)

	again, err := l.LookupOrCreate("bob", 3)
	require.NoError(t, err)
	assert.Same(t, acc, again)
	assert.Equal(t, "alice", again.Name, "stored name must not be updated")
}

func TestLookupOrCreateOutOfRange(t *testing.T) {
	l := New(5)
	_, err := l.LookupOrCreate("alice", 5)
	assert.ErrorIs(t, err, ErrAccountOutOfRange)
}

func TestApplyTradeBuyAndSell(t *testing.T) {
	l := New(2)
	buyer, _ := l.LookupOrCreate("buyer", 0)
	seller, _ := l.LookupOrCreate("seller", 1)

	l.ApplyTrade(buyer, 10, 100, common.Buy)
	l.ApplyTrade(seller, 10, 100, common.Sell)

	assert.EqualValues(t, 10, buyer.Shares)
	assert.EqualValues(t, -1000, buyer.Cash)
	assert.EqualValues(t, -10, seller.Shares)
	assert.EqualValues(t, 1000, seller.Cash)
}

func TestApplyTradeTracksPositionHighWaterMarks(t *testing.T) {
	l := New(1)
	acc, _ := l.LookupOrCreate("trader", 0)

	l.ApplyTrade(acc, 10, 1, common.Buy)
	l.ApplyTrade(acc, 25, 1, common.Sell)
	l.ApplyTrade(acc, 5, 1, common.Buy)

	assert.EqualValues(t, -10, acc.Shares)
	assert.EqualValues(t, 10, acc.PosMax)
	assert.EqualValues(t, -15, acc.PosMin)
}

func TestApplyTradeSaturatesSharesAndCash(t *testing.T) {
	l := New(1)
	acc, _ := l.LookupOrCreate("trader", 0)

	l.ApplyTrade(acc, uint64(math.MaxInt32), 1, common.Buy)
	l.ApplyTrade(acc, uint64(math.MaxInt32), 1, common.Buy)

	assert.EqualValues(t, math.MaxInt32, acc.Shares, "shares must clamp, not wrap")
	assert.EqualValues(t, -math.MaxInt32, acc.Cash, "cash must clamp, not wrap")
}

func TestSaturatingCentsClampsPathologicalProduct(t *testing.T) {
	got := saturatingCents(math.MaxUint32, math.MaxInt32)
	assert.EqualValues(t, satBound, got)
}
