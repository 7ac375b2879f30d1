package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"auctionengine/internal/domain"
	"auctionengine/internal/redis/redis_functions"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	function string
	keys     []string
	args     []interface{}
}

type fakeCaller struct {
	calls []call
	err   error
}

func (f *fakeCaller) FCall(_ context.Context, function string, keys []string, args ...interface{}) *redis.Cmd {
	f.calls = append(f.calls, call{function, keys, args})
	return redis.NewCmdResult(nil, f.err)
}

func TestChannels(t *testing.T) {
	auctionID, userID := uuid.New(), uuid.New()

	broadcast := domain.NewEvent(domain.EventAuctionExtended, &auctionID, nil, "", "", nil)
	assert.Equal(t, []string{AuctionChannel(auctionID)}, Channels(broadcast))

	direct := domain.NewEvent(domain.EventBidOutbid, &auctionID, &userID, "", "", nil)
	assert.Equal(t, []string{"auc:" + auctionID.String() + ":events", "user:" + userID.String() + ":events"}, Channels(direct))

	balance := domain.NewEvent(domain.EventBalanceChanged, nil, &userID, "", "", nil)
	assert.Equal(t, []string{UserChannel(userID)}, Channels(balance))

	assert.Equal(t, []string{"system:events"}, Channels(domain.Event{}))
}

func TestDeliverCallsPublishFunction(t *testing.T) {
	auctionID, userID := uuid.New(), uuid.New()
	ev := domain.NewEvent(domain.EventBidPlaced, &auctionID, &userID, "Bid placed", "", map[string]any{"amount": "110"})

	fc := &fakeCaller{}
	require.NoError(t, New(fc, "notifications_stream", 0).Deliver(context.Background(), ev))

	require.Len(t, fc.calls, 1)
	c := fc.calls[0]
	assert.Equal(t, redis_functions.PublishEvent, c.function)
	assert.Equal(t, []string{"notifications_stream", AuctionChannel(auctionID), UserChannel(userID)}, c.keys)
	require.Len(t, c.args, 3)
	assert.Equal(t, ev.ID.String(), c.args[0])
	assert.Equal(t, int64(defaultMaxLen), c.args[2])

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(c.args[1].([]byte), &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, domain.EventBidPlaced, decoded.Type)
}

func TestDeliverReturnsRedisError(t *testing.T) {
	fc := &fakeCaller{err: errors.New("NOSCRIPT")}
	err := New(fc, "s", 10).Deliver(context.Background(), domain.Event{ID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, "redis_events", New(fc, "s", 10).Name())
}
