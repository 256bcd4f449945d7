package websocket

import (
	"context"

	"github.com/skyops/propilot/internal/events"
	"github.com/skyops/propilot/pkg/logger"
)

// Bridge forwards domain events from the bus to all WebSocket clients
type Bridge struct {
	server *Server
	bus    *events.Bus
	logger *logger.Logger
}

// NewBridge creates a bus-to-WebSocket bridge
func NewBridge(server *Server, bus *events.Bus, log *logger.Logger) *Bridge {
	return &Bridge{
		server: server,
		bus:    bus,
		logger: log.Named("ws-bridge"),
	}
}

// Run consumes bus events and broadcasts them until the context is cancelled
func (b *Bridge) Run(ctx context.Context) {
	ch, unsub := b.bus.Subscribe(
		events.TypeTakeoffRoll,
		events.TypeLandingRoll,
		events.TypeArrivedAtAirport,
		events.TypeDepartedAirport,
		events.TypeLegActivated,
		events.TypeLegCompleted,
		events.TypeTripStatusChanged,
	)
	defer unsub()

	b.logger.Info("Event bridge started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Event bridge stopped")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b.server.Broadcast(EventMessage(evt))
		}
	}
}
