package ws

import (
	"context"
	"encoding/json"
	"sync"

	"auctionengine/internal/domain"
	"auctionengine/internal/redis/eventsink"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Feed attaches a room to the auction's cross-instance event channel.
type Feed interface {
	Subscribe(auctionID uuid.UUID)
	Unsubscribe(auctionID uuid.UUID)
}

// subscriptionManager holds exactly one Redis subscription per auction
// channel, no matter how many sockets joined the room.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[uuid.UUID]*subEntry
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func NewRedisFeed(rdb *redis.Client, hub *Hub) Feed {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[uuid.UUID]*subEntry),
	}
}

// Subscribe ensures the process listens on the auction's channel; repeated
// calls only bump the reference count.
func (sm *subscriptionManager) Subscribe(auctionID uuid.UUID) {
	sm.mu.Lock()
	if e, ok := sm.subs[auctionID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, eventsink.AuctionChannel(auctionID))

	sm.subs[auctionID] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok {
					return
				}
				recipient, frame, err := wrapEvent([]byte(m.Payload))
				if err != nil {
					zap.L().Warn("ws.wrap_event_failed", zap.String("auction_id", auctionID.String()), zap.Error(err))
					continue
				}
				sm.hub.Broadcast(auctionID, recipient, frame)
			}
		}
	}()
}

// Unsubscribe tears the Redis subscription down when the last socket leaves.
func (sm *subscriptionManager) Unsubscribe(auctionID uuid.UUID) {
	sm.mu.Lock()
	e, ok := sm.subs[auctionID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, auctionID)
	sm.mu.Unlock()

	e.cancel()
}

// wrapEvent turns a published event
//
//	{"id":"…","type":"bid.outbid","user_id":"u1",…}
//
// into a router frame
//
//	{"event":"auctions/bid.outbid","body":{…}}
//
// and returns the recipient the frame is limited to.
func wrapEvent(payload []byte) (uuid.NullUUID, []byte, error) {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return uuid.NullUUID{}, nil, err
	}
	evt := string(ev.Type)
	if evt == "" {
		evt = "unknown"
	}
	frame, err := json.Marshal(Envelope{Event: "auctions/" + evt, Body: payload})
	return ev.UserID, frame, err
}
