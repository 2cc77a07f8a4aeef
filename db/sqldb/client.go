package sqldb

import (
	"context"
	"errors"
)

// ErrNoRows is returned by Row.Scan when the query matched nothing, whatever the driver.
var ErrNoRows = errors.New("sqldb: no rows in result set")

type Client interface {
	Init() error
	Close() error
	GetConf() *Conf
	GetDSN() string
	Ping(ctx context.Context) error
	Handle // Methods required for Handle are also required, so, promote it

	// RawStore holds this client's dialect statements, loaded during Init
	RawStore() *RawSQLStore
}

type Handle interface {
	// Exec executes SQL statement like INSERT, UPDATE, DELETE.
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row // Lazy. only fails at Scan()
}

type Row interface {
	Scan(dest ...any) error
}

type Result interface {
	RowsAffected() (int64, error)
}
