package site

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     interface{}
	fetchedAt time.Time
}

// cache keeps loaded values for ttl. Concurrent loads of one key are
// collapsed into a single call.
type cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mutex   sync.Mutex
	entries map[string]entry
}

func newCache(ttl time.Duration, now func() time.Time) *cache {
	return &cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

// get returns the value for key while it is fresh and calls load otherwise.
// If the reload fails and an older value exists, the older value is returned.
func (c *cache) get(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	c.mutex.Lock()
	cached, ok := c.entries[key]
	c.mutex.Unlock()
	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.value, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// callers sharing this load must not fail because the first one left
		value, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mutex.Lock()
		c.entries[key] = entry{value: value, fetchedAt: c.now()}
		c.mutex.Unlock()
		return value, nil
	})
	if err != nil {
		if ok {
			log.Warn().Err(err).Str("key", key).Msg("revalidation failed, serving stale content")
			return cached.value, nil
		}
		return nil, err
	}
	return value, nil
}
