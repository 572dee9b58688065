package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx pool and pings it, retrying transient connection
// failures with exponential backoff for up to connectTimeout.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create connection pool: %w", err))
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			if isTransientConnectError(err) {
				return fmt.Errorf("ping database: %w", err)
			}
			return backoff.Permanent(fmt.Errorf("ping database: %w", err))
		}
		pool = p
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectTimeout
	if err := backoff.Retry(connect, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return pool, nil
}

// isTransientConnectError reports whether a connect failure is worth retrying,
// e.g. the database container is still starting.
func isTransientConnectError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"i/o timeout",
		"the database system is starting up",
		"no such host",
		"broken pipe",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
