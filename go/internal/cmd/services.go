package main

import (
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/roomclocks/go/internal/clocks"
	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/gateway"
	"github.com/mcdev12/roomclocks/go/internal/rooms"
)

type Services struct {
	Clocks  *clocks.Service
	Rooms   *rooms.Service
	Gateway *gateway.Service
}

func setupServices(store docstore.Store, config *Config, clock clockwork.Clock) *Services {
	// Wire up dependency injection chain
	// Store → Repository layer → App layer → Service layer

	// Clocks
	clocksRepo := clocks.NewRepository(store)
	accounting := clocks.NewAccounting(clock, config.Clocks.GuardTransitions)
	clocksApp := clocks.NewApp(clocksRepo, accounting, config.clocksConfig())
	clocksService := clocks.NewService(clocksApp, clock)

	// Rooms
	roomsRepo := rooms.NewRepository(store)
	roomsApp := rooms.NewApp(roomsRepo, clocksApp, config.roomsConfig())
	roomsService := rooms.NewService(roomsApp)

	// Gateway
	gatewayService := gateway.NewService(config.gatewayConfig(), roomsApp, clocksApp, clock)

	return &Services{
		Clocks:  clocksService,
		Rooms:   roomsService,
		Gateway: gatewayService,
	}
}
