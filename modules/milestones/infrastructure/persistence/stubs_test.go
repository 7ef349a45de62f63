package persistence

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// stubTx implements the parts of pgx.Tx the repositories call; the rest panic.
type stubTx struct {
	pgx.Tx
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	batchFunc    func(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if s.execFunc == nil {
		return pgconn.CommandTag{}, errors.New("exec not implemented")
	}
	return s.execFunc(ctx, sql, args...)
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc == nil {
		return stubRow{err: errors.New("query row not implemented")}
	}
	return s.queryRowFunc(ctx, sql, args...)
}

func (s *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return s.batchFunc(ctx, b)
}

// assign copies values into scan destinations by reflection; nil leaves the zero value.
func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("destination length %d does not match row length %d", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("column %d: cannot scan %T into %s", i, values[i], target.Type())
		}
		target.Set(v)
	}
	return nil
}

type stubRows struct {
	pgx.Rows
	data [][]any
	idx  int
	err  error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return errors.New("no current row to scan")
	}
	return assign(dest, r.data[r.idx-1])
}

func (r *stubRows) Err() error { return r.err }
func (r *stubRows) Close()     {}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type stubBatch struct {
	pgx.BatchResults
	rows   []stubRow
	idx    int
	closed bool
}

func (b *stubBatch) QueryRow() pgx.Row {
	if b.idx >= len(b.rows) {
		return stubRow{err: errors.New("batch exhausted")}
	}
	row := b.rows[b.idx]
	b.idx++
	return row
}

func (b *stubBatch) Close() error {
	b.closed = true
	return nil
}
