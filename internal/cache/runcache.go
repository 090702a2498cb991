package cache

import (
	"context"
	"sync"
	"time"

	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/types"
)

const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

// RunCache holds completed simulation runs until they are either committed
// to durable storage or expire. Get on an expired id behaves exactly like Get
// on an unknown id: (nil, nil).
type RunCache interface {
	Put(ctx context.Context, runID string, run *types.SimulationRun) error
	Get(ctx context.Context, runID string) (*types.SimulationRun, error)
	Remove(ctx context.Context, runID string) error
	Close() error
}

type entry struct {
	run       *types.SimulationRun
	createdAt time.Time
	expiresAt time.Time
}

// memoryCache is the in-process RunCache. Runs are inserted whole after full
// construction and never mutated in place, so readers can never observe a
// partially built run. A background sweeper evicts expired entries.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	log     *logger.Logger
	done    chan struct{}
	once    sync.Once
}

func NewMemoryCache(baseLog *logger.Logger, ttl, sweepInterval time.Duration) RunCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	c := &memoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		log:     baseLog.With("cache", "MemoryRunCache"),
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

func (c *memoryCache) Put(ctx context.Context, runID string, run *types.SimulationRun) error {
	now := time.Now()
	c.mu.Lock()
	c.entries[runID] = entry{run: run, createdAt: now, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Get(ctx context.Context, runID string) (*types.SimulationRun, error) {
	c.mu.RLock()
	e, ok := c.entries[runID]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	return e.run, nil
}

func (c *memoryCache) Remove(ctx context.Context, runID string) error {
	c.mu.Lock()
	delete(c.entries, runID)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *memoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			removed := c.sweep(time.Now())
			if removed > 0 {
				c.log.Debug("Swept expired runs", "removed", removed)
			}
		}
	}
}

func (c *memoryCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}
