package outbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// db is satisfied by both *pgxpool.Pool and *pgxpool.Conn.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	tableLabel string
	dispatcher Dispatcher
	opts       RelayOptions
	lockKey    int64
	m          *metrics
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	r, err := newRelay(table, dispatcher, opts)
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return r, nil
}

func newRelay(table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	opts.setDefaults()
	label := TableLabel(table)
	return &Relay{
		table:      table,
		tableLabel: label,
		dispatcher: dispatcher,
		opts:       opts,
		lockKey:    advisoryLockKey("outbox:" + label),
		m:          getMetrics(),
	}, nil
}

// Run polls until ctx is cancelled. With SingleActive only the process holding
// the table's advisory lock dispatches; the others wait for it.
func (r *Relay) Run(ctx context.Context) error {
	if !r.opts.SingleActive {
		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
		return r.loop(ctx, r.pool)
	}

	for {
		conn, leader, err := r.tryLead(ctx)
		switch {
		case err != nil:
			r.opts.Logger.WithError(err).Warn("outbox: leader election failed")
		case leader:
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
			r.opts.Logger.WithField("table", r.tableLabel).Info("outbox: relay became leader")
			err = r.loop(ctx, conn)
			if _, unlockErr := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey); unlockErr != nil {
				r.opts.Logger.WithError(unlockErr).Warn("outbox: advisory unlock failed")
			}
			conn.Release()
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
			return err
		default:
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.opts.Clock.After(r.opts.PollInterval):
		}
	}
}

func (r *Relay) tryLead(ctx context.Context) (*pgxpool.Conn, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return conn, true, nil
}

func (r *Relay) loop(ctx context.Context, conn db) error {
	ticker := r.opts.Clock.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		if err := r.observeQueueDepth(ctx, conn); err != nil {
			r.opts.Logger.WithError(err).Debug("outbox: observe queue depth failed")
		}
		if _, err := r.processOnce(ctx, conn); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

type claimed struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	Topic       string
	Payload     []byte
	EventID     uuid.UUID
	Sequence    int64
	Attempts    int
}

func (c claimed) fields(table string) logrus.Fields {
	return logrus.Fields{
		"table":        table,
		"topic":        c.Topic,
		"event_id":     c.EventID.String(),
		"aggregate_id": c.AggregateID.String(),
		"sequence":     c.Sequence,
		"attempts":     c.Attempts,
	}
}

// processOnce claims one batch and dispatches it, returning how many messages were claimed.
func (r *Relay) processOnce(ctx context.Context, conn db) (int, error) {
	now := r.opts.Clock.Now()
	batch, err := r.claim(ctx, conn, now)
	if err != nil {
		return 0, err
	}

	for _, c := range batch {
		dispatchCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.opts.DispatchTimeout > 0 {
			dispatchCtx, cancel = context.WithTimeout(ctx, r.opts.DispatchTimeout)
		}
		start := r.opts.Clock.Now()
		err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
			Meta: Meta{
				Table:       r.table,
				AggregateID: c.AggregateID,
				Topic:       c.Topic,
				EventID:     c.EventID,
				Sequence:    c.Sequence,
				Attempts:    c.Attempts,
			},
			Payload: c.Payload,
		})
		cancel()
		latency := r.opts.Clock.Since(start)
		log := r.opts.Logger.WithFields(c.fields(r.tableLabel))

		if err == nil {
			r.recordDispatch(c.Topic, "success", latency)
			if ackErr := r.ack(ctx, conn, c.ID); ackErr != nil {
				log.WithError(ackErr).Warn("outbox: ack failed")
			}
			continue
		}

		r.recordDispatch(c.Topic, "failure", latency)
		lastErr := truncateError(err, r.opts.LastErrorMaxLen)
		if c.Attempts >= r.opts.MaxAttempts {
			r.m.deadTotal.WithLabelValues(r.tableLabel, c.Topic).Inc()
			log.WithError(err).Error("outbox: message exhausted its attempts")
			if deadErr := r.release(ctx, conn, c.ID, lastErr, r.opts.Clock.Now()); deadErr != nil {
				log.WithError(deadErr).Warn("outbox: dead update failed")
			}
			continue
		}

		next := r.opts.Clock.Now().Add(backoff(c.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
		if nackErr := r.release(ctx, conn, c.ID, lastErr, next); nackErr != nil {
			log.WithError(nackErr).Warn("outbox: nack failed")
		}
	}
	return len(batch), nil
}

func (r *Relay) claim(ctx context.Context, conn db, now time.Time) (items []claimed, err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	table := r.table.Sanitize()
	rows, err := tx.Query(ctx, fmt.Sprintf(
		`SELECT id, aggregate_id, topic, payload, event_id, sequence, attempts
		   FROM %s
		  WHERE published_at IS NULL
		    AND available_at <= $1
		    AND attempts < $2
		    AND (locked_at IS NULL OR locked_at < $3)
		  ORDER BY available_at, sequence
		  LIMIT $4
		  FOR UPDATE SKIP LOCKED`, table),
		now, r.opts.MaxAttempts, now.Add(-r.opts.LockTTL), r.opts.BatchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("outbox claim select: %w", err)
	}
	ids := make([]uuid.UUID, 0, r.opts.BatchSize)
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.ID, &c.AggregateID, &c.Topic, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("outbox claim scan: %w", err)
		}
		c.Attempts++
		items = append(items, c)
		ids = append(ids, c.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox claim rows: %w", err)
	}

	if len(ids) > 0 {
		update := fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, table)
		if _, err := tx.Exec(ctx, update, now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
			return nil, fmt.Errorf("outbox claim update: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("outbox claim commit: %w", err)
	}
	return items, nil
}

func (r *Relay) ack(ctx context.Context, conn db, id uuid.UUID) error {
	q := fmt.Sprintf(
		`UPDATE %s SET published_at = now(), locked_at = NULL, last_error = NULL
		  WHERE id = $1 AND published_at IS NULL`, r.table.Sanitize())
	if _, err := conn.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("outbox ack: %w", err)
	}
	return nil
}

// release unlocks a failed message and schedules its next attempt. Messages
// that reached MaxAttempts are never claimed again.
func (r *Relay) release(ctx context.Context, conn db, id uuid.UUID, lastError string, availableAt time.Time) error {
	q := fmt.Sprintf(
		`UPDATE %s SET locked_at = NULL, last_error = $2, available_at = $3
		  WHERE id = $1 AND published_at IS NULL`, r.table.Sanitize())
	if _, err := conn.Exec(ctx, q, id, lastError, availableAt); err != nil {
		return fmt.Errorf("outbox release: %w", err)
	}
	return nil
}

func (r *Relay) observeQueueDepth(ctx context.Context, conn db) error {
	var pending, locked int64
	q := fmt.Sprintf(
		`SELECT count(*), count(*) FILTER (WHERE locked_at IS NOT NULL)
		   FROM %s WHERE published_at IS NULL`, r.table.Sanitize())
	if err := conn.QueryRow(ctx, q).Scan(&pending, &locked); err != nil {
		return fmt.Errorf("outbox queue depth: %w", err)
	}
	r.m.pending.WithLabelValues(r.tableLabel).Set(float64(pending))
	r.m.locked.WithLabelValues(r.tableLabel).Set(float64(locked))
	return nil
}

func (r *Relay) recordDispatch(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(r.tableLabel, topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.tableLabel, topic, result).Observe(latency.Seconds())
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
