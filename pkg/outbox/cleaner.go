package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cleaner periodically deletes published messages older than the retention window.
type Cleaner struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	tableLabel string
	opts       CleanerOptions
}

func NewCleaner(pool *pgxpool.Pool, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if opts.DeadRetention > 0 && opts.DeadAttemptsThreshold <= 0 {
		return nil, invalidConfig("dead retention requires DeadAttemptsThreshold > 0")
	}
	opts.setDefaults()
	return &Cleaner{pool: pool, table: table, tableLabel: TableLabel(table), opts: opts}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	if !c.opts.Enabled {
		return nil
	}
	ticker := c.opts.Clock.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
		if err := c.cleanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).WithField("table", c.tableLabel).Warn("outbox: cleaner tick failed")
		}
	}
}

func (c *Cleaner) cleanOnce(ctx context.Context) error {
	now := c.opts.Clock.Now()
	table := c.table.Sanitize()

	batch := &pgx.Batch{}
	batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, table), now.Add(-c.opts.Retention))
	if c.opts.DeadRetention > 0 {
		batch.Queue(
			fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NULL AND attempts >= $1 AND created_at < $2`, table),
			c.opts.DeadAttemptsThreshold, now.Add(-c.opts.DeadRetention),
		)
	}
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("outbox cleaner delete: %w", err)
			}
		}
		return results.Close()
	})
}
