// Package coordinator serializes mutations per key, where a key is a storage
// root or the knowledge snapshot path.
package coordinator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/habiliai/docstore/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
)

type heldKeysKey struct{}

type Coordinator struct {
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func New(timeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		timeout: timeout,
		logger:  logger,
		locks:   map[string]*semaphore.Weighted{},
	}
}

func (c *Coordinator) lock(key string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[key]
	if !ok {
		l = semaphore.NewWeighted(1)
		c.locks[key] = l
	}
	return l
}

// Acquire takes the write locks for keys in sorted order and returns a
// context recording them. Keys already recorded in ctx are not taken again,
// so an operation holding a root lock can call into code that asks for the
// same root. release must be called on every path and is safe to call twice.
//
// Locks are taken in one global key order. A nested Acquire may only add
// keys that sort after every key ctx already holds; anything else fails
// without waiting. Callers that need several keys take them in one call.
//
// Acquire fails with ErrLockTimeout when the locks are not all obtained within
// the configured timeout, and with the context error when ctx ends first. No
// lock is held after a failure.
func (c *Coordinator) Acquire(ctx context.Context, keys ...string) (context.Context, func(), error) {
	held := HeldKeys(ctx)
	wanted := lo.Filter(lo.Uniq(keys), func(key string, _ int) bool {
		return key != "" && !lo.Contains(held, key)
	})
	sort.Strings(wanted)
	if len(wanted) == 0 {
		return ctx, func() {}, nil
	}
	if last := lo.Max(held); len(held) > 0 && wanted[0] < last {
		return ctx, func() {}, errors.Errorf("lock %s sorts before held lock %s", wanted[0], last)
	}

	opID := uuid.NewString()
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	acquired := make([]*semaphore.Weighted, 0, len(wanted))
	releaseAll := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Release(1)
		}
	}

	for _, key := range wanted {
		l := c.lock(key)
		if err := l.Acquire(waitCtx, 1); err != nil {
			releaseAll()
			if ctx.Err() != nil {
				return ctx, func() {}, ctx.Err()
			}
			c.logger.Warn("lock acquisition timed out", "op", opID, "key", key, "timeout", c.timeout)
			return ctx, func() {}, errors.Wrapf(errors.ErrLockTimeout, "waited %s for %s", c.timeout, key)
		}
		acquired = append(acquired, l)
	}

	c.logger.Debug("locks acquired", "op", opID, "keys", wanted, "waited", time.Since(start))

	var once sync.Once
	release := func() {
		once.Do(func() {
			releaseAll()
			c.logger.Debug("locks released", "op", opID, "keys", wanted, "held", time.Since(start))
		})
	}

	all := append(append([]string(nil), held...), wanted...)
	return context.WithValue(ctx, heldKeysKey{}, all), release, nil
}

// HeldKeys returns the keys recorded in ctx by Acquire.
func HeldKeys(ctx context.Context) []string {
	keys, _ := ctx.Value(heldKeysKey{}).([]string)
	return keys
}
