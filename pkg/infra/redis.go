package infra

import (
	"context"
	"os"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// ProvideRedisClient builds the client from REDIS_HOST, REDIS_PASSWORD
// and REDIS_DB. No connection is made until the first command.
func ProvideRedisClient(loggerFactory *LoggerFactory) (*redis.Client, func(), error) {
	logger := loggerFactory.Create("RedisClient").Sugar()

	redisDb := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			logger.Errorf("invalid redis db %v", err)
			return nil, nil, err
		}
		redisDb = db
	}

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     host,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDb,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			logger.Infof("redis connected to host[%v] db[%v]", host, redisDb)
			return nil
		},
	})

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Errorf("cannot close redis client %v", err)
		}
	}
	return client, cleanup, nil
}
