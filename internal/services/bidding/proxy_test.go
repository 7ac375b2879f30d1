package bidding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyLeaderAnswersManualBid(t *testing.T) {
	h := newHarness(t, nil)
	leader, challenger := h.funded(1000), h.funded(1000)

	_, err := h.proxy(leader, 110, 200)
	require.NoError(t, err)

	placed, err := h.bid(challenger, 150)
	require.NoError(t, err)
	assert.False(t, placed.Leading)
	require.Len(t, placed.AutoBids, 1)
	assert.True(t, placed.AutoBids[0].Amount.Equal(d(160)))
	assert.Equal(t, leader, placed.AutoBids[0].UserID)

	a := h.auction(t)
	assert.True(t, a.CurrentBid.Decimal.Equal(d(160)))
	assert.Equal(t, leader, a.HighBidderID.UUID)
	assert.Equal(t, 3, a.BidCount)

	outbid := h.rec.OfType("bid.outbid")
	require.Len(t, outbid, 1)
	assert.Equal(t, challenger, outbid[0].UserID.UUID)
}

func TestProxyAgainstProxyHigherCeilingWins(t *testing.T) {
	h := newHarness(t, nil)
	leader, challenger := h.funded(1000), h.funded(1000)

	_, err := h.proxy(leader, 110, 200)
	require.NoError(t, err)

	placed, err := h.proxy(challenger, 120, 300)
	require.NoError(t, err)
	assert.True(t, placed.Leading)
	require.Len(t, placed.AutoBids, 2)
	assert.True(t, placed.AutoBids[0].Amount.Equal(d(200)))
	assert.True(t, placed.AutoBids[1].Amount.Equal(d(210)))

	a := h.auction(t)
	assert.True(t, a.CurrentBid.Decimal.Equal(d(210)))
	assert.Equal(t, challenger, a.HighBidderID.UUID)
	assert.True(t, a.HighBidderMax.Decimal.Equal(d(300)))
	assert.Equal(t, 4, a.BidCount)
}

func TestProxyTieFavoursEarlierLeader(t *testing.T) {
	h := newHarness(t, nil)
	leader, challenger := h.funded(1000), h.funded(1000)

	_, err := h.proxy(leader, 110, 200)
	require.NoError(t, err)

	placed, err := h.proxy(challenger, 120, 200)
	require.NoError(t, err)
	assert.False(t, placed.Leading)

	a := h.auction(t)
	assert.Equal(t, leader, a.HighBidderID.UUID)
	assert.True(t, a.CurrentBid.Decimal.Equal(d(200)))
}

func TestProxyCeilingBelowIncrementDoesNotAnswer(t *testing.T) {
	h := newHarness(t, nil)
	leader, challenger := h.funded(1000), h.funded(1000)

	_, err := h.proxy(leader, 110, 125)
	require.NoError(t, err)

	placed, err := h.bid(challenger, 120)
	require.NoError(t, err)
	assert.True(t, placed.Leading)
	assert.Empty(t, placed.AutoBids)
}

func TestLeaderManualRaiseKeepsCeiling(t *testing.T) {
	h := newHarness(t, nil)
	leader, challenger := h.funded(1000), h.funded(1000)

	_, err := h.proxy(leader, 110, 200)
	require.NoError(t, err)
	_, err = h.bid(leader, 130)
	require.NoError(t, err)

	placed, err := h.bid(challenger, 150)
	require.NoError(t, err)
	assert.False(t, placed.Leading)
	assert.True(t, h.auction(t).CurrentBid.Decimal.Equal(d(160)))
}

func TestProxyCeilingMustBeFunded(t *testing.T) {
	h := newHarness(t, nil)
	user := h.funded(150)
	_, err := h.proxy(user, 110, 300)
	assert.ErrorContains(t, err, "InsufficientBalance")
}

func TestProxyHistoryIsMonotonic(t *testing.T) {
	h := newHarness(t, nil)
	a, b, c := h.funded(5000), h.funded(5000), h.funded(5000)

	_, err := h.proxy(a, 110, 400)
	require.NoError(t, err)
	_, err = h.proxy(b, 150, 420)
	require.NoError(t, err)
	_, err = h.bid(c, 500)
	require.NoError(t, err)

	auc := h.auction(t)
	prev := auc.StartingBid
	for _, bid := range h.history(t) {
		assert.True(t, bid.Amount.GreaterThanOrEqual(prev.Add(auc.BidIncrement)), "%s after %s", bid.Amount, prev)
		prev = bid.Amount
	}
	assert.Equal(t, c, auc.HighBidderID.UUID)
}
