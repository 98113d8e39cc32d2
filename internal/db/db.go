package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectAttempts  = 5
	connectBaseDelay = 2 * time.Second
)

// NewPool dials postgres with a bounded exponential backoff: 5 attempts,
// 2s delay doubling each time. If all attempts fail the process cannot
// start and the last error is returned.
func NewPool(ctx context.Context, log *slog.Logger, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)

	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5

	var lastErr error
	delay := connectBaseDelay

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := tryConnect(ctx, cfg)

		if err == nil {
			return pool, nil
		}

		lastErr = err

		if attempt < connectAttempts {
			log.Warn("db connect failed, retrying",
				"attempt", attempt,
				"max_attempts", connectAttempts,
				"retry_in", delay.String(),
				"err", err,
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			delay *= 2
		}
	}

	return nil, fmt.Errorf("db connect failed after %d attempts: %w", connectAttempts, lastErr)
}

func tryConnect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(cctx, cfg)

	if err != nil {
		return nil, err
	}

	err = pool.Ping(cctx)

	if err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
