package config

import (
	"flag"
	"time"
)

type Config struct {
	OpenTime  *string
	CloseTime *string
	Timezone  *string

	Store       *string
	RedisPrefix *string

	AllocateMaxAttempts *int
	AdvanceMaxAttempts  *int
	StoreTimeoutMs      *int
	MaxNameLength       *int

	SessionStaleSeconds *int
	PingIntervalSeconds *int

	NotifyStatsIntervalSeconds *int
	InitAvgWaitSeconds         *int
	AverageWaitWindowSize      *int

	ConfigRefreshSeconds *int
}

var CFG = &Config{
	OpenTime:                   flag.String("open-time", "09:00", "Time of day (HH:MM) the appliance opens for new tickets."),
	CloseTime:                  flag.String("close-time", "22:00", "Time of day (HH:MM) the appliance stops accepting new tickets."),
	Timezone:                   flag.String("timezone", "", "IANA time zone of open-time and close-time. Empty means the server's local zone."),
	Store:                      flag.String("store", "redis", "Shared state store, redis or memory. memory only coordinates clients of this process."),
	RedisPrefix:                flag.String("redis-prefix", "queue:", "Prefix of every redis key used by the queue."),
	AllocateMaxAttempts:        flag.Int("allocate-max-attempts", 32, "Max insert attempts when allocating a ticket number under contention."),
	AdvanceMaxAttempts:         flag.Int("advance-max-attempts", 3, "Max attempts to advance the serving counter after a ticket is deleted."),
	StoreTimeoutMs:             flag.Int("store-timeout-ms", 3000, "Timeout of a single store call."),
	MaxNameLength:              flag.Int("max-name-length", 40, "Max number of characters of a ticket name."),
	SessionStaleSeconds:        flag.Int("session-stale-seconds", 300, "After client disconnects for this period, its session is viewed as stale and its ticket is cancelled. A client coming back before that keeps its ticket."),
	PingIntervalSeconds:        flag.Int("ping-interval-seconds", 30, "Send pings to websocket peer with this interval."),
	NotifyStatsIntervalSeconds: flag.Int("notify-stats-interval-seconds", 5, "Interval to notify stats to client."),
	InitAvgWaitSeconds:         flag.Int("init-avg-wait-seconds", 180, "Initial default value of wait duration."),
	AverageWaitWindowSize:      flag.Int("average-wait-window-size", 50, "The size of sliding window for calculating average wait time of a ticket."),
	ConfigRefreshSeconds:       flag.Int("config-refresh-seconds", 5, "Interval to reload service config from redis."),
}

func ProvideConfig() *Config {
	return CFG
}

func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(*c.StoreTimeoutMs) * time.Millisecond
}

func (c *Config) SessionStalePeriod() time.Duration {
	return time.Duration(*c.SessionStaleSeconds) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(*c.PingIntervalSeconds) * time.Second
}

func (c *Config) NotifyStatsInterval() time.Duration {
	return time.Duration(*c.NotifyStatsIntervalSeconds) * time.Second
}

func (c *Config) InitAvgWait() time.Duration {
	return time.Duration(*c.InitAvgWaitSeconds) * time.Second
}

func (c *Config) ConfigRefreshInterval() time.Duration {
	return time.Duration(*c.ConfigRefreshSeconds) * time.Second
}

func (c *Config) UseRedis() bool {
	return *c.Store != "memory"
}
