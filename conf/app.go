package conf

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"time"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/sec"
	"github.com/zeptools/invoicer/storage"
	"github.com/zeptools/invoicer/throttle"
	"github.com/zeptools/invoicer/web/session"
)

// AppConf is config/.invoicer.json. Every section is optional.
type AppConf struct {
	Storage   StorageConf  `json:"storage"`
	Capture   CaptureConf  `json:"capture"`
	Links     LinkConf     `json:"links"`
	Throttle  ThrottleConf `json:"throttle"`
	UDSSocket string       `json:"uds_socket"` // admin socket path; empty disables it
	SweepCron string       `json:"sweep_cron"` // schedule of the transient sweep, crontab syntax
}

type StorageConf struct {
	Backend    string `json:"backend" validate:"omitempty,oneof=file kv sql"`
	Dir        string `json:"dir"`                                      // file backend, relative to the app root
	SQLDB      string `json:"sqldb" validate:"required_if=Backend sql"` // name in .sql-databases.json
	TTLSeconds int    `json:"ttl_seconds" validate:"min=0"`             // kv backend; 0 keeps forever
}

type CaptureConf struct {
	ScaleFactor            float64 `json:"scale_factor" validate:"omitempty,gt=0,lte=4"`
	AllowCrossOriginImages *bool   `json:"allow_cross_origin_images"`
	BackgroundColor        string  `json:"background_color" validate:"omitempty,hexcolor"`
	ChromeBin              string  `json:"chrome_bin"`
	ControlURL             string  `json:"control_url"`
	TimeoutSeconds         int     `json:"timeout_seconds" validate:"min=0"`
}

type LinkConf struct {
	Secret     string `json:"secret" validate:"omitempty,min=32"`
	TTLSeconds int    `json:"ttl_seconds" validate:"min=0"`
	Transient  string `json:"transient" validate:"omitempty,oneof=memory kv"`
}

type ThrottleConf struct {
	Burst         int `json:"burst" validate:"min=0"`
	Increment     int `json:"increment" validate:"min=0"`
	PeriodSeconds int `json:"period_seconds" validate:"min=0"`
}

const (
	defaultStorageDir = "data"
	defaultLinkTTL    = 10 * time.Minute
	transientTTL      = 5 * time.Minute
	defaultSweepCron  = "* * * * *"
)

// LoadAppConf reads config/.invoicer.json, if any, and fills defaults.
func (c *Core) LoadAppConf() error {
	if _, err := c.loadJSONFile(".invoicer.json", &c.App); err != nil {
		return err
	}
	if c.App.Storage.Backend == "" {
		c.App.Storage.Backend = "file"
	}
	if c.App.Storage.Dir == "" {
		c.App.Storage.Dir = defaultStorageDir
	}
	if c.App.SweepCron == "" {
		c.App.SweepCron = defaultSweepCron
	}
	return nil
}

// CaptureOptions are the configured options over capture.DefaultOptions.
func (c *Core) CaptureOptions() capture.Options {
	opts := capture.DefaultOptions()
	cc := c.App.Capture
	if cc.ScaleFactor > 0 {
		opts.ScaleFactor = cc.ScaleFactor
	}
	if cc.AllowCrossOriginImages != nil {
		opts.AllowCrossOriginImages = *cc.AllowCrossOriginImages
	}
	if cc.BackgroundColor != "" {
		opts.BackgroundColor = cc.BackgroundColor
	}
	return opts
}

func (c *Core) RodConf() capture.RodConf {
	return capture.RodConf{
		ControlURL: c.App.Capture.ControlURL,
		Bin:        c.App.Capture.ChromeBin,
		Timeout:    time.Duration(c.App.Capture.TimeoutSeconds) * time.Second,
	}
}

// InvoiceStore builds the configured persistence backend. The sql backend is migrated here.
func (c *Core) InvoiceStore(ctx context.Context) (storage.Store, error) {
	sc := c.App.Storage
	switch sc.Backend {
	case "", "file":
		dir := sc.Dir
		if dir == "" {
			dir = defaultStorageDir
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.AppRoot, dir)
		}
		return &storage.FileStore{Dir: dir}, nil
	case "kv":
		if c.BackendKVDBClient == nil {
			return nil, fmt.Errorf("kv storage: backend KVDB client not ready")
		}
		return &storage.KVStore{Client: c.BackendKVDBClient, TTL: time.Duration(sc.TTLSeconds) * time.Second}, nil
	case "sql":
		client, ok := c.BackendSQLDBClients[sc.SQLDB]
		if !ok {
			return nil, fmt.Errorf("sql storage: no sql database named %q", sc.SQLDB)
		}
		s := storage.NewSQLStore(client)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q", sc.Backend)
}

// Transients is the store export stages artifacts in. kv is used only when configured for links
// and a real KV database is present.
func (c *Core) Transients() delivery.TransientStore {
	if c.App.Links.Transient == "kv" && c.BackendKVDBClient != nil {
		return &delivery.KVStore{Client: c.BackendKVDBClient, Prefix: c.AppName + "_blob:", TTL: c.LinkTTL()}
	}
	return delivery.NewMemoryStore(transientTTL)
}

// Downloads is where linked artifacts wait until redeemed or expired.
func (c *Core) Downloads() delivery.TransientStore {
	if c.App.Links.Transient == "kv" && c.BackendKVDBClient != nil {
		return &delivery.KVStore{Client: c.BackendKVDBClient, Prefix: c.AppName + "_download:", TTL: c.LinkTTL()}
	}
	return delivery.NewMemoryStore(c.LinkTTL())
}

func (c *Core) LinkTTL() time.Duration {
	if c.App.Links.TTLSeconds > 0 {
		return time.Duration(c.App.Links.TTLSeconds) * time.Second
	}
	return defaultLinkTTL
}

// LinkSigner signs download links. Without a configured secret a random one is used for this run.
func (c *Core) LinkSigner() (*sec.LinkSigner, error) {
	secret := []byte(c.App.Links.Secret)
	if len(secret) == 0 {
		secret = make([]byte, sec.MinLinkSecretLen)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		logging.Component("core").Warn("no link secret configured, download links end with this process")
	}
	return sec.NewLinkSigner(secret, c.AppName)
}

// ThrottleBucketConf is the per-client export budget. Zero values fall back to 10 per minute.
func (c *Core) ThrottleBucketConf() *throttle.BucketConf {
	tc := c.App.Throttle
	bc := &throttle.BucketConf{Burst: 10, Increment: 10, Period: time.Minute}
	if tc.Burst > 0 {
		bc.Burst = tc.Burst
	}
	if tc.Increment > 0 {
		bc.Increment = tc.Increment
	}
	if tc.PeriodSeconds > 0 {
		bc.Period = time.Duration(tc.PeriodSeconds) * time.Second
	}
	return bc
}

func ephemeralSessionConf() (session.Conf, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return session.Conf{}, err
	}
	return session.Conf{
		EncryptionKey: base64.StdEncoding.EncodeToString(key),
		ExpireSliding: 3600,
		ExpireHardcap: 7 * 24 * 3600,
	}, nil
}
