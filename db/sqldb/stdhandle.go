package sqldb

import (
	"context"
	"database/sql"
	"errors"
)

// StdHandle is a Handle over database/sql, shared by the mysql and sqlite clients.
type StdHandle struct {
	DB *sql.DB
}

func (h *StdHandle) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return h.DB.ExecContext(ctx, query, args...)
}

func (h *StdHandle) QueryRow(ctx context.Context, query string, args ...any) Row {
	return stdRow{row: h.DB.QueryRowContext(ctx, query, args...)}
}

func (h *StdHandle) Ping(ctx context.Context) error {
	return h.DB.PingContext(ctx)
}

func (h *StdHandle) Close() error {
	if h.DB == nil {
		return nil
	}
	return h.DB.Close()
}

type stdRow struct {
	row *sql.Row
}

func (r stdRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}
