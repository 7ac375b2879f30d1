package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Hub keeps client sets per auction.
type Hub struct {
	rooms sync.Map // uuid.UUID -> *room
}

func NewHub() *Hub { return &Hub{} }

// Broadcast is called by the Redis subscriber. A valid recipient limits the
// frame to that user's sockets.
func (h *Hub) Broadcast(auctionID uuid.UUID, recipient uuid.NullUUID, msg []byte) {
	if v, ok := h.rooms.Load(auctionID); ok {
		v.(*room).broadcast(recipient, msg)
	}
}

func (h *Hub) Join(auctionID uuid.UUID, c *clientConn) {
	r, _ := h.rooms.LoadOrStore(auctionID, newRoom())
	r.(*room).add(c)
}

func (h *Hub) Leave(auctionID uuid.UUID, c *clientConn) {
	if v, ok := h.rooms.Load(auctionID); ok {
		v.(*room).remove(c)
	}
}

// Size returns the number of sockets watching auctionID.
func (h *Hub) Size(auctionID uuid.UUID) int {
	if v, ok := h.rooms.Load(auctionID); ok {
		return v.(*room).size()
	}
	return 0
}
