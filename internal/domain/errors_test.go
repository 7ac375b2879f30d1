package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectionMatchesSentinelByReason(t *testing.T) {
	err := fmt.Errorf("place bid: %w", Reject(ReasonBidTooLow, "minimum is %s", "110"))

	assert.True(t, errors.Is(err, ErrBidTooLow))
	assert.False(t, errors.Is(err, ErrAuctionEnded))
	assert.True(t, IsRejection(err))
	assert.Equal(t, "place bid: BidTooLow: minimum is 110", err.Error())

	var r *Rejection
	assert.True(t, errors.As(err, &r))
	assert.Equal(t, ReasonBidTooLow, r.Reason)
}

func TestInvariantIsNotARejection(t *testing.T) {
	err := Invariantf("bid increment %d", -1)
	assert.True(t, errors.Is(err, ErrInvariant))
	assert.False(t, IsRejection(err))
}
