package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/freeeve/battleodds/pkg/odds"
)

func resultKey(fingerprint string) string { return "odds:result:" + fingerprint }

const hitsKey = "odds:result_hits"

// GetResult returns the cached result for a request fingerprint, or nil.
func (c *Client) GetResult(ctx context.Context, fingerprint string) (*odds.Result, error) {
	data, err := c.rdb.Get(ctx, resultKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	var res odds.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	c.rdb.Incr(ctx, hitsKey)
	return &res, nil
}

// SetResult caches a result under its request fingerprint.
func (c *Client) SetResult(ctx context.Context, fingerprint string, res *odds.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.rdb.Set(ctx, resultKey(fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}

// Hits is the number of cache hits served since the counter was created.
func (c *Client) Hits(ctx context.Context) (int64, error) {
	n, err := c.rdb.Get(ctx, hitsKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get hits: %w", err)
	}
	return n, nil
}
