// Package redisoffset supplements the core with crash-resume bookkeeping
// (SPEC_FULL.md §9): a MetadataConsumer decorator that records the last
// acknowledged DrainMeta id per DrawMeta in Redis, purely additive — the
// core's contract is already satisfied by protocol.NullMetadataConsumer
// alone. Grounded on the teacher's RedisConnection connect/ping pattern
// (common/mredis/redis.go).
package redisoffset

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
)

// keyPrefix namespaces this driver's keys in a shared Redis instance.
const keyPrefix = "idrclient:offset:"

// Consumer wraps a delegate MetadataConsumer, additionally persisting each
// acknowledged DrainMeta's id under its DrawMeta's key so a restarted run
// can tell which draws already completed.
type Consumer struct {
	disposable.Base
	client   *redis.Client
	delegate etlmodel.MetadataConsumer
	ttl      time.Duration
}

// New connects to Redis at addr and wraps delegate. A zero ttl means the
// offset keys never expire.
func New(ctx context.Context, addr string, delegate etlmodel.MetadataConsumer, ttl time.Duration) (*Consumer, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &idrerrors.TransientError{Op: "redisoffset.New", Err: err}
	}

	return &Consumer{client: client, delegate: delegate, ttl: ttl}, nil
}

// Dispose closes the Redis client and disposes the delegate.
func (c *Consumer) Dispose() error {
	return c.DisposeOnce(func() error {
		closeErr := c.client.Close()

		if err := c.delegate.Dispose(); err != nil {
			return err
		}

		return closeErr
	})
}

// TakeDrainMeta records meta.ID() under meta.DrawMetaID's key, then forwards
// to the delegate. A failed Redis write is returned as TransientError (worth
// retrying) before the delegate is called, so a retry repeats both steps.
func (c *Consumer) TakeDrainMeta(ctx context.Context, meta *etlmodel.DrainMeta) error {
	if err := c.Guard("redisoffset.Consumer"); err != nil {
		return err
	}

	key := keyPrefix + meta.DrawMetaID

	if err := c.client.Set(ctx, key, meta.ID(), c.ttl).Err(); err != nil {
		return &idrerrors.TransientError{Op: "redisoffset.TakeDrainMeta", Err: err}
	}

	return c.delegate.TakeDrainMeta(ctx, meta)
}

// LastDrainMetaID returns the last acknowledged DrainMeta id recorded for
// drawMetaID, or "" if none is recorded.
func (c *Consumer) LastDrainMetaID(ctx context.Context, drawMetaID string) (string, error) {
	if err := c.Guard("redisoffset.Consumer"); err != nil {
		return "", err
	}

	val, err := c.client.Get(ctx, keyPrefix+drawMetaID).Result()

	switch {
	case err == nil:
		return val, nil
	case err == redis.Nil:
		return "", nil
	default:
		return "", &idrerrors.TransientError{Op: "redisoffset.LastDrainMetaID", Err: fmt.Errorf("redis get: %w", err)}
	}
}
