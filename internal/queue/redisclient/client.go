package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// wakeList is the list the API pushes to after committing a reservation and
// the worker blocks on between polls. Purely a latency optimization; the
// jobs table in Postgres stays the source of truth.
const wakeList = "flighthub:jobs:wake"

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  -1, // BRPOP manages its own deadline
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// Wake nudges the worker that new work was committed. Errors are swallowed;
// the worker's poll ticker picks the job up anyway.
func (c *Client) Wake(ctx context.Context) {
	pushCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	_ = c.redisdb.LPush(pushCtx, wakeList, "1").Err()
	// keep the nudge list from growing without bound if no worker is running
	_ = c.redisdb.LTrim(pushCtx, wakeList, 0, 64).Err()
}

// WaitForWake blocks up to timeout for a nudge. Returning without one is
// normal; the caller falls back to polling.
func (c *Client) WaitForWake(ctx context.Context, timeout time.Duration) {
	_, _ = c.redisdb.BRPop(ctx, timeout, wakeList).Result()
}
