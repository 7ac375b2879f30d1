package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"auctionengine/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishKeysByAuction(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{w: w}
	auctionID, userID := uuid.New(), uuid.New()
	ev := domain.NewEvent(domain.EventBidPlaced, &auctionID, &userID, "Bid placed", "", nil)

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, auctionID.String(), string(w.msgs[0].Key))
	assert.Equal(t, "bid.placed", string(w.msgs[0].Headers[0].Value))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPartitionKeyFallsBack(t *testing.T) {
	userID := uuid.New()
	assert.Equal(t, userID.String(), PartitionKey(domain.NewEvent(domain.EventBalanceChanged, nil, &userID, "", "", nil)))

	ev := domain.Event{ID: uuid.New()}
	assert.Equal(t, ev.ID.String(), PartitionKey(ev))
}

func TestRelayHandlerPropagatesBrokerError(t *testing.T) {
	boom := errors.New("leader not available")
	h := RelayHandler(&Producer{w: &fakeWriter{err: boom}})

	err := h(context.Background(), domain.Event{ID: uuid.New()})
	require.ErrorIs(t, err, boom)
}

func TestRelayHandlerPublishes(t *testing.T) {
	w := &fakeWriter{}
	h := RelayHandler(&Producer{w: w})

	require.NoError(t, h(context.Background(), domain.Event{ID: uuid.New(), Type: domain.EventAuctionEnded}))
	assert.Len(t, w.msgs, 1)
}
