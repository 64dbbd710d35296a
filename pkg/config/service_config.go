package config

import (
	"context"
	"strconv"
	"sync"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/window"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// ServiceConfig redis key.
	cfgRedisKey = "config"
)

// Fields operators may set in the redis config hash. Missing fields keep
// the flag values.
type serviceFields struct {
	OpenTime         string `redis:"openTime"`
	CloseTime        string `redis:"closeTime"`
	IsServiceEnabled string `redis:"isServiceEnabled"`
}

// ServiceConfig decides when the appliance accepts new tickets. It
// starts from the flags and, with a redis store, follows the config hash
// so opening hours change without a restart.
type ServiceConfig struct {
	mu        sync.RWMutex
	window    window.Window
	isEnabled bool

	defaultOpen  string
	defaultClose string
	timezone     string

	refreshInterval time.Duration
	redisKey        string
	redisClient     *redis.Client
	logger          *zap.SugaredLogger
}

func ProvideServiceConfig(config *Config, redisClient *redis.Client, loggerFactory *infra.LoggerFactory) (*ServiceConfig, error) {
	w, err := window.Parse(*config.OpenTime, *config.CloseTime, *config.Timezone)
	if err != nil {
		return nil, err
	}

	c := &ServiceConfig{
		window:          w,
		isEnabled:       true,
		defaultOpen:     *config.OpenTime,
		defaultClose:    *config.CloseTime,
		timezone:        *config.Timezone,
		refreshInterval: config.ConfigRefreshInterval(),
		redisKey:        *config.RedisPrefix + cfgRedisKey,
		logger:          loggerFactory.Create("ServiceConfig").Sugar(),
	}
	if config.UseRedis() {
		c.redisClient = redisClient
	}
	return c, nil
}

// IsOpen implements queue.Gate.
func (c *ServiceConfig) IsOpen(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isEnabled && c.window.IsOpen(now)
}

func (c *ServiceConfig) Window() window.Window {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.window
}

// Run reloads the config hash until ctx is done. Without redis there is
// nothing to follow.
func (c *ServiceConfig) Run(ctx context.Context) {
	if c.redisClient == nil {
		c.logger.Infof("no redis, keep window[%v]", c.Window())
		return
	}

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Errorf("err reading config from redis %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh reads the config hash once. A broken value is logged and the
// current setting is kept.
func (c *ServiceConfig) Refresh(ctx context.Context) error {
	cmd := c.redisClient.HGetAll(ctx, c.redisKey)
	values, err := cmd.Result()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	fields := &serviceFields{}
	if err := cmd.Scan(fields); err != nil {
		return err
	}

	openTime, closeTime := fields.OpenTime, fields.CloseTime
	if openTime == "" {
		openTime = c.defaultOpen
	}
	if closeTime == "" {
		closeTime = c.defaultClose
	}

	w, err := window.Parse(openTime, closeTime, c.timezone)
	if err != nil {
		c.logger.Errorf("invalid window in config[%+v] %v", fields, err)
		w = c.Window()
	}

	isEnabled := true
	if fields.IsServiceEnabled != "" {
		if isEnabled, err = strconv.ParseBool(fields.IsServiceEnabled); err != nil {
			c.logger.Errorf("invalid isServiceEnabled[%v] %v", fields.IsServiceEnabled, err)
			isEnabled = true
		}
	}

	c.mu.Lock()
	changed := c.window.Open != w.Open || c.window.Close != w.Close || c.isEnabled != isEnabled
	c.window, c.isEnabled = w, isEnabled
	c.mu.Unlock()

	if changed {
		c.logger.Infof("updated window[%v] isServiceEnabled[%v]", w, isEnabled)
	}
	return nil
}
