package main

import (
	"context"

	"game-soul-technology/joker/appliance-queue-server/pkg/config"
	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/store"

	"github.com/go-redis/redis/v8"
)

// ProvideStore picks the shared state store from the store flag. Only
// redis coordinates clients across processes.
func ProvideStore(config *config.Config, redisClient *redis.Client, loggerFactory *infra.LoggerFactory) (store.Store, func(), error) {
	logger := loggerFactory.Create("Store").Sugar()

	if !config.UseRedis() {
		logger.Warnf("using memory store, only clients of this process share the queue")
		return store.NewMemoryStore(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.StoreTimeout())
	defer cancel()

	redisStore, err := store.NewRedisStore(ctx, redisClient, *config.RedisPrefix, logger)
	if err != nil {
		logger.Errorf("cannot create redis store %v", err)
		return nil, nil, err
	}

	logger.Infof("using redis store prefix[%v]", *config.RedisPrefix)
	return redisStore, redisStore.Close, nil
}
