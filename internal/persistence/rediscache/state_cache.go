// Package rediscache layers a best-effort Redis cache over the refresh-state
// repository so frequent scheduled runs skip the relational read. Cache
// failures degrade to the backing repo; they never fail a run.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quantfabric/barforge/internal/persistence"
)

// StateCache is a read-through/write-through decorator for a StateRepo.
type StateCache struct {
	inner persistence.StateRepo
	rdb   redis.UniversalClient
	ttl   time.Duration
}

// NewStateCache wraps inner with a Redis cache.
func NewStateCache(inner persistence.StateRepo, rdb redis.UniversalClient, ttl time.Duration) *StateCache {
	return &StateCache{inner: inner, rdb: rdb, ttl: ttl}
}

func stateKey(assetID, tf string) string {
	return fmt.Sprintf("barforge:state:%s:%s", assetID, tf)
}

func (c *StateCache) Get(ctx context.Context, assetID, tf string) (*persistence.RefreshState, error) {
	key := stateKey(assetID, tf)
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var st persistence.RefreshState
		if jsonErr := json.Unmarshal(payload, &st); jsonErr == nil {
			return &st, nil
		}
		// Corrupt cache entry: drop it and fall through to the source.
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		log.Debug().Err(err).Str("key", key).Msg("state cache read failed; falling back")
	}

	st, err := c.inner.Get(ctx, assetID, tf)
	if err != nil {
		return nil, err
	}
	if st != nil {
		c.store(ctx, key, *st)
	}
	return st, nil
}

func (c *StateCache) Put(ctx context.Context, st persistence.RefreshState) error {
	if err := c.inner.Put(ctx, st); err != nil {
		return err
	}
	c.store(ctx, stateKey(st.AssetID, st.TF), st)
	return nil
}

func (c *StateCache) Touch(ctx context.Context, assetID, tf string, at time.Time) error {
	if err := c.inner.Touch(ctx, assetID, tf, at); err != nil {
		return err
	}
	// Invalidate rather than patch; the next Get repopulates.
	if err := c.rdb.Del(ctx, stateKey(assetID, tf)).Err(); err != nil {
		log.Debug().Err(err).Msg("state cache invalidation failed")
	}
	return nil
}

func (c *StateCache) store(ctx context.Context, key string, st persistence.RefreshState) {
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("state cache write failed")
	}
}
