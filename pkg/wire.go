//go:build wireinject
// +build wireinject

package main

import (
	"game-soul-technology/joker/appliance-queue-server/pkg/client"
	"game-soul-technology/joker/appliance-queue-server/pkg/config"
	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/notify"
	"game-soul-technology/joker/appliance-queue-server/pkg/queue"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	infra.ProvideLoggerFactory,
	infra.ProvideRedisClient,
	infra.ProvideHttpClient,
)

var queueSet = wire.NewSet(
	config.ProvideConfig,
	config.ProvideServiceConfig,
	ProvideStore,
	queue.ProvideStats,
	queue.ProvideService,
)

func Setup() (*Server, func(), error) {
	wire.Build(
		infraSet,
		queueSet,
		notify.ProvideNotifier,
		client.ProvideHub,
		ProvideApplication,
		ProvideServer,
	)
	return nil, nil, nil
}
