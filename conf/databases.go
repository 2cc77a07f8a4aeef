package conf

import (
	"fmt"

	"github.com/zeptools/invoicer/db/kvdb"
	"github.com/zeptools/invoicer/db/kvdb/impls/memory"
	"github.com/zeptools/invoicer/db/kvdb/impls/redis"
	"github.com/zeptools/invoicer/db/sqldb"
	"github.com/zeptools/invoicer/db/sqldb/impls/mysql"
	"github.com/zeptools/invoicer/db/sqldb/impls/pgsql"
	"github.com/zeptools/invoicer/db/sqldb/impls/sqlite"
	"github.com/zeptools/invoicer/logging"
)

// PrepareKVDatabase builds the KV client from config/.kv-databases.json.
// Without the file an in-process memory database is used.
func (c *Core) PrepareKVDatabase() error {
	c.KVDBConf = &kvdb.Conf{}
	found, err := c.loadJSONFile(".kv-databases.json", c.KVDBConf)
	if err != nil {
		return err
	}
	if !found {
		c.KVDBConf = &kvdb.Conf{Type: "memory"}
	}
	client, err := newKVDBClient(c.KVDBConf)
	if err != nil {
		return err
	}
	if err = client.Init(); err != nil {
		return fmt.Errorf("init %s kv database: %w", c.KVDBConf.Type, err)
	}
	c.BackendKVDBClient = client
	logging.Component("core").Info("kv database ready", "type", c.KVDBConf.Type)
	return nil
}

func newKVDBClient(conf *kvdb.Conf) (kvdb.Client, error) {
	switch conf.Type {
	case "redis":
		return redis.NewClient(conf, nil), nil
	case "memory":
		c := memory.NewClient()
		c.Conf = conf
		return c, nil
	}
	return nil, fmt.Errorf("unsupported key-value database type: %q", conf.Type)
}

// PrepareSQLDatabases builds and inits one client per entry of config/.sql-databases.json.
// A missing file means no SQL databases.
func (c *Core) PrepareSQLDatabases() error {
	c.SQLDBConfs = make(map[string]*sqldb.Conf)
	c.BackendSQLDBClients = make(map[string]sqldb.Client)
	if _, err := c.loadJSONFile(".sql-databases.json", &c.SQLDBConfs); err != nil {
		return err
	}
	if len(c.SQLDBConfs) == 0 {
		return nil
	}

	// Registering Supported Implementations
	pgsql.Register()
	mysql.Register()
	sqlite.Register()

	for dbName, sqlDBConf := range c.SQLDBConfs {
		dbClient, err := sqldb.New(sqlDBConf)
		if err != nil {
			return err
		}
		if err = dbClient.Init(); err != nil {
			return fmt.Errorf("init sql database %q: %w", dbName, err)
		}
		c.BackendSQLDBClients[dbName] = dbClient
		logging.Component("core").Info("sql database ready", "db", dbName, "type", sqlDBConf.Type)
	}
	return nil
}
