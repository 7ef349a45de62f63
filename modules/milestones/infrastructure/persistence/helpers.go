package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func pgUUIDArray(ids []uuid.UUID) pgtype.FlatArray[uuid.UUID] {
	return pgtype.FlatArray[uuid.UUID](ids)
}

// pgDateOnlyUTC drops the time of day; Postgres date columns are read back at midnight UTC.
func pgDateOnlyUTC(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	y, m, day := d.Time.Date()
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func timestamptzPtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
