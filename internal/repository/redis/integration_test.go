//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/freeeve/battleodds/internal/testutil"
	"github.com/freeeve/battleodds/pkg/odds"
)

var testRDB *goredis.Client

func setup(t *testing.T, ttl time.Duration) *Client {
	t.Helper()
	if testRDB == nil {
		testRDB = testutil.SetupRedis(t)
	}
	testutil.ResetResults(t, testRDB)
	return NewClientFromPool(testRDB, ttl)
}

func TestResultRoundTrip(t *testing.T) {
	c := setup(t, time.Minute)
	ctx := context.Background()

	res := &odds.Result{
		AttackerWin:       0.6,
		DefenderWin:       0.3,
		Draw:              0.1,
		TUVSwing:          4.5,
		AverageRounds:     2.25,
		AttackerRemaining: []odds.Unit{{Type: "tank", Attack: 3, Defense: 3, HitPoints: 1, Cost: 6}},
		Engine:            "analytic",
	}
	if err := c.SetResult(ctx, "abc", res); err != nil {
		t.Fatalf("set result: %v", err)
	}

	got, err := c.GetResult(ctx, "abc")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got == nil || got.AttackerWin != 0.6 || got.Engine != "analytic" || len(got.AttackerRemaining) != 1 {
		t.Errorf("got %+v", got)
	}

	hits, err := c.Hits(ctx)
	if err != nil || hits != 1 {
		t.Errorf("hits = %d, %v", hits, err)
	}

	keys := testutil.ResultKeys(t, testRDB)
	if len(keys) != 2 || keys[0] != resultKey("abc") || keys[1] != hitsKey {
		t.Errorf("keys = %v", keys)
	}

	ttl := testRDB.TTL(ctx, resultKey("abc")).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v", ttl)
	}
}

func TestResultMiss(t *testing.T) {
	c := setup(t, 0)
	got, err := c.GetResult(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	if hits, _ := c.Hits(context.Background()); hits != 0 {
		t.Errorf("miss counted as hit")
	}
}
