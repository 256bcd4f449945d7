// Package events provides the in-process typed event bus that decouples the
// OOOI capture monitor from the trip service and the websocket push layer.
package events

import (
	"sync"
	"time"

	"github.com/skyops/propilot/pkg/logger"
)

// Type identifies an event kind
type Type string

const (
	TypeTakeoffRoll       Type = "takeoff_roll"
	TypeLandingRoll       Type = "landing_roll"
	TypeArrivedAtAirport  Type = "arrived_at_airport"
	TypeDepartedAirport   Type = "departed_airport"
	TypeLegActivated      Type = "leg_activated"
	TypeLegCompleted      Type = "leg_completed"
	TypeTripStatusChanged Type = "trip_status_changed"
)

// Event is a single bus message. Airport and Trip/Leg identifiers are filled
// by whichever side knows them; consumers must treat absent fields as unknown.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Airport   string    `json:"airport,omitempty"` // ICAO code, when the event is location-bound
	TripID    string    `json:"trip_id,omitempty"`
	LegID     string    `json:"leg_id,omitempty"`
	Lat       float64   `json:"lat,omitempty"`
	Lon       float64   `json:"lon,omitempty"`
	SpeedKts  float64   `json:"speed_kts,omitempty"`
}

// Bus is a fan-out publisher. Subscribers receive on buffered channels;
// a subscriber that falls behind has events dropped rather than blocking
// the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]subscription
	nextID int
	logger *logger.Logger
}

type subscription struct {
	ch    chan Event
	types map[Type]bool // nil means all types
}

// NewBus creates a new event bus
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]subscription),
		logger: log.Named("event-bus"),
	}
}

// Subscribe registers a subscriber for the given event types (all types when
// none are given). The returned cancel function must be called to release the
// subscription; the channel is closed on cancel.
func (b *Bus) Subscribe(types ...Type) (<-chan Event, func()) {
	var filter map[Type]bool
	if len(types) > 0 {
		filter = make(map[Type]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	ch := make(chan Event, 64)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{ch: ch, types: filter}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to all matching subscribers. Delivery is
// non-blocking; full subscriber channels drop the event.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.types != nil && !sub.types[evt.Type] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				logger.String("type", string(evt.Type)))
		}
	}
}

// SubscriberCount returns the number of active subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
