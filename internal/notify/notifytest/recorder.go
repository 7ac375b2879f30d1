// Package notifytest provides an in-memory Emitter for tests.
package notifytest

import (
	"sync"

	"auctionengine/internal/domain"

	"github.com/google/uuid"
)

type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Emit(events ...domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *Recorder) OfType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// For returns the events addressed to one user.
func (r *Recorder) For(userID uuid.UUID) []domain.Event {
	var out []domain.Event
	for _, ev := range r.Events() {
		if ev.UserID.Valid && ev.UserID.UUID == userID {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
