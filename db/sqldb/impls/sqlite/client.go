// Package sqlite is the sqldb.Client over the pure-Go modernc driver. Conf.DB is the database file path.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/zeptools/invoicer/db/sqldb"
	"github.com/zeptools/invoicer/logging"
)

const DBType = "sqlite"

func Register() {
	sqldb.RegisterFactory(DBType, func(conf *sqldb.Conf) (sqldb.Client, error) {
		return &Client{Conf: conf}, nil
	})
}

type Client struct {
	sqldb.StdHandle
	Conf *sqldb.Conf

	rawStore *sqldb.RawSQLStore
	dsn      string
}

var _ sqldb.Client = (*Client)(nil)

func (c *Client) Init() error {
	c.dsn = c.Conf.DSN
	if c.dsn == "" {
		if dir := filepath.Dir(c.Conf.DB); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		c.dsn = "file:" + c.Conf.DB + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", c.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	c.DB = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = c.Ping(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}

	c.rawStore = sqldb.NewRawStore()
	if err = sqldb.LoadRawStmtsToStore(c.rawStore, DBType, sqldb.PlaceholderPrefixForDBType[DBType]); err != nil {
		return err
	}
	logging.Component("sqldb").Info("sqlite client initialized", "path", c.Conf.DB)
	return nil
}

func (c *Client) GetConf() *sqldb.Conf {
	return c.Conf
}

func (c *Client) GetDSN() string {
	return c.dsn
}

func (c *Client) RawStore() *sqldb.RawSQLStore {
	return c.rawStore
}
