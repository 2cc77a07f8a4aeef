// Package conf loads the application configuration and owns the long-running services and clients.
package conf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeptools/invoicer/db/kvdb"
	"github.com/zeptools/invoicer/db/sqldb"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/metrics"
	"github.com/zeptools/invoicer/schedjobs"
	"github.com/zeptools/invoicer/svc"
	"github.com/zeptools/invoicer/throttle"
	"github.com/zeptools/invoicer/uds"
	"github.com/zeptools/invoicer/web"
	"github.com/zeptools/invoicer/web/session"
)

type DebugOpts struct {
	Verbose bool `json:"verbose"` // debug-level logging
}

// Core - common config and the resources built from it
type Core struct {
	AppName             string                        `json:"app_name" validate:"required"`
	Listen              string                        `json:"listen" validate:"required"` // HTTP Server Listen IP:PORT Address
	Host                string                        `json:"host"`                       // public base URL, e.g. https://invoices.example.com
	DebugOpts           DebugOpts                     `json:"debug_opts"`
	AppRoot             string                        `json:"-"`
	RootCtx             context.Context               `json:"-"` // Global Context with RootCancel
	RootCancel          context.CancelFunc            `json:"-"` // CancelFunc for RootCtx
	App                 AppConf                       `json:"-"` // LoadAppConf
	UDSService          *uds.Service                  `json:"-"` // PrepareUDSService
	JobScheduler        *schedjobs.Scheduler          `json:"-"` // PrepareJobScheduler
	WebService          *web.Service                  `json:"-"` // PrepareWebService
	ThrottleBucketStore *throttle.BucketStore[string] `json:"-"` // PrepareThrottleBucketStore
	KVDBConf            *kvdb.Conf                    `json:"-"` // loadKVDBConf
	BackendKVDBClient   kvdb.Client                   `json:"-"` // PrepareKVDatabase
	SQLDBConfs          map[string]*sqldb.Conf        `json:"-"` // loadSQLDBConfs
	BackendSQLDBClients map[string]sqldb.Client       `json:"-"` // PrepareSQLDatabases
	WebSessionManager   *session.Manager              `json:"-"` // PrepareWebSessions
	MetricsRegistry     *prometheus.Registry          `json:"-"`
	Exports             *metrics.Exports              `json:"-"`

	services []svc.Service // Services to Manage
	done     chan error
}

// BaseInit - 1st step for initialization
// 1. set AppRoot
// 2. load config/.core.json
// 3. prepare logging and metrics
// 4. start the shutdown signal listener
func (c *Core) BaseInit(appRoot string, rootCtx context.Context, rootCancel context.CancelFunc) error {
	c.AppRoot = appRoot
	found, err := c.loadJSONFile(".core.json", c)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("missing %s", c.configPath(".core.json"))
	}
	c.RootCtx = rootCtx
	c.RootCancel = rootCancel
	logging.Setup(c.DebugOpts.Verbose)
	c.MetricsRegistry = metrics.NewRegistry()
	c.Exports = metrics.NewExports(c.MetricsRegistry)
	c.startShutdownSignalListener()
	return nil
}

func (c *Core) AddService(s svc.Service) {
	c.services = append(c.services, s)
	logging.Component("core").Info("service added", "service", s.Name(), "total", len(c.services))
}

func (c *Core) StartServices() error {
	c.done = make(chan error, len(c.services))
	for _, s := range c.services {
		if err := s.Start(); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		go func() {
			c.done <- <-s.Done()
		}()
	}
	return nil
}

// WaitServicesDone blocks until every service reports its shutdown and returns the first error.
func (c *Core) WaitServicesDone() error {
	var first error
	for range c.services {
		if err := <-c.done; err != nil && first == nil {
			first = err
			c.RootCancel() // one failing service takes the rest down
		}
	}
	return first
}

func (c *Core) StopServices() {
	for _, s := range c.services {
		s.Stop()
	}
}

var once sync.Once

func (c *Core) startShutdownSignalListener() {
	once.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sigs:
				logging.Component("core").Info("shutting down", "signal", sig.String(), "app", c.AppName)
				c.RootCancel() // broadcast to all child services via Context.Done()
			case <-c.RootCtx.Done():
			}
			signal.Stop(sigs)
		}()
	})
}

func (c *Core) PrepareJobScheduler() {
	c.JobScheduler = schedjobs.NewScheduler(c.RootCtx)
	c.AddService(c.JobScheduler)
}

func (c *Core) PrepareUDSService(sockPath string, cmdMap map[string]uds.CmdHnd) {
	c.UDSService = uds.NewService(c.RootCtx, sockPath, cmdMap)
	c.AddService(c.UDSService)
}

func (c *Core) PrepareWebService(router http.Handler) {
	c.WebService = web.NewService(c.RootCtx, c.Listen, router)
	c.AddService(c.WebService)
}

func (c *Core) PrepareThrottleBucketStore(cleanupCycle time.Duration, cleanupOlderThan time.Duration) {
	c.ThrottleBucketStore = throttle.NewBucketStore[string](c.RootCtx, cleanupCycle, cleanupOlderThan)
	c.AddService(c.ThrottleBucketStore)
}

// PrepareWebSessions prepares WebSessionManager from config/.web-session.json.
// Without the file an ephemeral key is generated, so sessions do not survive a restart.
// Prerequisite: BackendKVDBClient
func (c *Core) PrepareWebSessions() error {
	if c.BackendKVDBClient == nil {
		return errors.New("backend KVDB client not ready")
	}
	var sc session.Conf
	found, err := c.loadJSONFile(".web-session.json", &sc)
	if err != nil {
		return err
	}
	if !found {
		if sc, err = ephemeralSessionConf(); err != nil {
			return err
		}
		logging.Component("core").Warn("no .web-session.json, using an ephemeral session key")
	}
	mgr, err := session.NewManager(c.AppName, sc, c.BackendKVDBClient)
	if err != nil {
		return err
	}
	c.WebSessionManager = mgr
	return nil
}

// ResourceCleanUp closes database clients. Every client is attempted.
func (c *Core) ResourceCleanUp() error {
	log := logging.Component("core")
	var result *multierror.Error
	if c.BackendKVDBClient != nil {
		if err := c.BackendKVDBClient.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("kv database: %w", err))
		}
	}
	for name, sqlDBClient := range c.BackendSQLDBClients {
		if err := sqlDBClient.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("sql database %q: %w", name, err))
			continue
		}
		log.Info("sql database client closed", "db", name, "type", sqlDBClient.GetConf().Type)
	}
	return result.ErrorOrNil()
}
