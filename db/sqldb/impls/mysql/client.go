package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	lowimpl "github.com/go-sql-driver/mysql"

	"github.com/zeptools/invoicer/db/sqldb"
	"github.com/zeptools/invoicer/logging"
)

const DBType = "mysql"

func Register() {
	sqldb.RegisterFactory(DBType, func(conf *sqldb.Conf) (sqldb.Client, error) {
		return &Client{Conf: conf}, nil
	})
}

type Client struct {
	sqldb.StdHandle // [Embedded] for Promoted Methods
	Conf            *sqldb.Conf

	rawStore *sqldb.RawSQLStore
	dsn      string
}

// Ensure mysql.Client implements sqldb.Client interface
var _ sqldb.Client = (*Client)(nil)

func (c *Client) Init() error {
	if c.Conf.DSN != "" {
		c.dsn = c.Conf.DSN
	} else {
		cfg := lowimpl.NewConfig()
		cfg.User = c.Conf.User
		cfg.Passwd = c.Conf.PW
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", c.Conf.Host, c.Conf.Port)
		cfg.DBName = c.Conf.DB
		cfg.ParseTime = true
		if c.Conf.TZ != "" {
			loc, err := time.LoadLocation(c.Conf.TZ)
			if err != nil {
				return fmt.Errorf("mysql tz: %w", err)
			}
			cfg.Loc = loc
		}
		c.dsn = cfg.FormatDSN()
	}
	db, err := sql.Open("mysql", c.dsn)
	if err != nil {
		return fmt.Errorf("failed to open mysql: %w", err)
	}
	db.SetMaxOpenConns(c.Conf.MaxConnsOr(10))
	db.SetConnMaxLifetime(3 * time.Minute)
	c.DB = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = c.Ping(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}

	c.rawStore = sqldb.NewRawStore()
	if err = sqldb.LoadRawStmtsToStore(c.rawStore, DBType, sqldb.PlaceholderPrefixForDBType[DBType]); err != nil {
		return err
	}
	logging.Component("sqldb").Info("mysql client initialized", "addr", fmt.Sprintf("%s:%d", c.Conf.Host, c.Conf.Port), "db", c.Conf.DB)
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
