package store

import (
	"context"
	"fmt"
	"time"

	"github.com/coldwatch/coldwatch/internal/types"
)

const createReadingsTable = `CREATE TABLE IF NOT EXISTS readings (
	id    BIGSERIAL PRIMARY KEY,
	date  TEXT NOT NULL,
	time  TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL
)`

// PostgresRecords appends readings to the readings table.
type PostgresRecords struct {
	db DBTX
}

// NewPostgresRecords creates a record store backed by db (pool or transaction)
func NewPostgresRecords(db DBTX) *PostgresRecords {
	return &PostgresRecords{db: db}
}

// EnsureSchema creates the readings table when it does not exist
func (r *PostgresRecords) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createReadingsTable); err != nil {
		return fmt.Errorf("creating readings table: %w", err)
	}
	return nil
}

// AppendRecord inserts one (date, time, value) row
func (r *PostgresRecords) AppendRecord(ctx context.Context, reading types.Reading) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO readings (date, time, value) VALUES ($1, $2, $3)`,
		reading.Date(),
		reading.Clock(),
		reading.Value,
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent rows, newest first
func (r *PostgresRecords) Recent(ctx context.Context, limit int) ([]types.Reading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT date, time, value FROM readings ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var out []types.Reading
	for rows.Next() {
		var date, clock string
		var value float64
		if err := rows.Scan(&date, &clock, &value); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		ts, err := time.ParseInLocation(types.DateLayout+" "+types.TimeLayout, date+" "+clock, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parsing stored timestamp %q %q: %w", date, clock, err)
		}
		out = append(out, types.NewReading(value, ts))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return out, nil
}
