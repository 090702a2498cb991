package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

const redisKeyPrefix = "simrun:"

// redisCache is the RunCache used when the service runs with more than one
// replica. Redis key expiry replaces the in-process sweeper.
type redisCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisCacheFromEnv(log *logger.Logger, ttl time.Duration) (RunCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisCache{
		log: log.With("cache", "RedisRunCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *redisCache) Put(ctx context.Context, runID string, run *types.SimulationRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisKeyPrefix+runID, raw, c.ttl).Err()
}

func (c *redisCache) Get(ctx context.Context, runID string) (*types.SimulationRun, error) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+runID).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run types.SimulationRun
	if err := json.Unmarshal(raw, &run); err != nil {
		c.log.Warn("Bad cached run payload", "run_id", runID, "error", err)
		return nil, err
	}
	return &run, nil
}

func (c *redisCache) Remove(ctx context.Context, runID string) error {
	return c.rdb.Del(ctx, redisKeyPrefix+runID).Err()
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}
