package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectAttempts   = 10
	connectRetryDelay = 10 * time.Second
)

// Connect opens a pool against dbURL, retrying while the database comes up.
func Connect(ctx context.Context, dbURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %w", err)
	}

	var pool *pgxpool.Pool
	for i := 0; i < connectAttempts; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				logger.Info("Successfully connected to the database")
				return pool, nil
			}
			pool.Close()
		}

		logger.Warn("Failed to connect to the database",
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", connectAttempts),
			slog.String("error", err.Error()))

		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectRetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to the database after %d attempts: %w", connectAttempts, err)
}
