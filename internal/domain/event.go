package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBidPlaced        EventType = "bid.placed"
	EventBidOutbid        EventType = "bid.outbid"
	EventAuctionExtended  EventType = "auction.extended"
	EventAuctionLive      EventType = "auction.live"
	EventAuctionWon       EventType = "auction.won"
	EventAuctionEnded     EventType = "auction.ended"
	EventAuctionCancelled EventType = "auction.cancelled"
	EventBalanceChanged   EventType = "balance.changed"
	EventBalanceNegative  EventType = "balance.negative"
)

// Event is handed to the notification sinks after the unit of work that
// produced it has committed. A nil UserID means the event is a broadcast to
// everyone watching AuctionID.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	AuctionID uuid.NullUUID  `json:"auction_id"`
	UserID    uuid.NullUUID  `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewEvent(t EventType, auctionID, userID *uuid.UUID, title, message string, data map[string]any) Event {
	ev := Event{
		ID:        uuid.New(),
		Type:      t,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if auctionID != nil {
		ev.AuctionID = uuid.NullUUID{UUID: *auctionID, Valid: true}
	}
	if userID != nil {
		ev.UserID = uuid.NullUUID{UUID: *userID, Valid: true}
	}
	return ev
}
