// Package store holds the reading persistence backends: an append-only
// record table in PostgreSQL (or an in-memory buffer when no database is
// configured) and the single "last reading" file read by the chat bot.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coldwatch/coldwatch/internal/types"
)

// ErrNoReading is returned when no reading has been persisted yet.
var ErrNoReading = errors.New("no reading recorded yet")

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordAppender appends one reading to the record history
type RecordAppender interface {
	AppendRecord(ctx context.Context, r types.Reading) error
}

// LastWriter overwrites the last-reading slot
type LastWriter interface {
	PersistLast(ctx context.Context, r types.Reading) error
}

// Store combines a record backend and the last-reading slot into the
// two-operation store the ingestion pipeline writes to.
type Store struct {
	Records RecordAppender
	Last    LastWriter
}

// AppendRecord appends r to the record backend
func (s *Store) AppendRecord(ctx context.Context, r types.Reading) error {
	return s.Records.AppendRecord(ctx, r)
}

// PersistLast overwrites the last-reading slot with r
func (s *Store) PersistLast(ctx context.Context, r types.Reading) error {
	return s.Last.PersistLast(ctx, r)
}
