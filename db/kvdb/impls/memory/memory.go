// Package memory is an in-process kvdb.Client for single-node runs and tests.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/zeptools/invoicer/db/kvdb"
)

type entry struct {
	val     string
	expires time.Time // zero = no expiry
}

type Client struct {
	Conf *kvdb.Conf

	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

var _ kvdb.Client = (*Client)(nil)

func NewClient() *Client {
	c := &Client{Conf: &kvdb.Conf{Type: "memory"}}
	_ = c.Init()
	return c
}

func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]entry)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) GetConf() *kvdb.Conf {
	return c.Conf
}

// SetClock replaces the time source
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// lookupLocked drops the key if it has expired
func (c *Client) lookupLocked(key string) (entry, bool) {
	e, ok := c.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.data, key)
		return entry{}, false
	}
	return e, true
}

func (c *Client) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookupLocked(key)
	return ok, nil
}

func (c *Client) Delete(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.lookupLocked(k); ok {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *Client) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(key)
	if !ok {
		return false, nil
	}
	if expiration <= 0 {
		delete(c.data, key)
		return true, nil
	}
	e.expires = c.now().Add(expiration)
	c.data[key] = e
	return true, nil
}

// ScanKeys returns every match in one batch, sorted. The cursor is ignored.
func (c *Client) ScanKeys(_ context.Context, match string, _ any, _ int) ([]string, any, error) {
	if match == "" {
		match = "*"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for k := range c.data {
		if _, ok := c.lookupLocked(k); !ok {
			continue
		}
		ok, err := path.Match(match, k)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil, nil
}

func (c *Client) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{val: s}
	if expiration > 0 {
		e.expires = c.now().Add(expiration)
	}
	c.data[key] = e
	return nil
}

func (c *Client) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(key)
	return e.val, ok, nil
}
