// Package editor holds the explicit session context around one invoice being edited.
package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/storage"
)

// CLIKey is the storage key of the single invoice edited from the command line.
const CLIKey = "invoice_data_v1"

type Options struct {
	Now         func() time.Time
	IDGenerator invoice.IDGenerator // item ids; uuid when nil
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) engineOpts() []invoice.EngineOption {
	if o.IDGenerator == nil {
		return nil
	}
	return []invoice.EngineOption{invoice.WithIDGenerator(o.IDGenerator)}
}

// Session wraps one invoice, its engine and the key it is persisted under.
// All operations are serialized. Every successful mutation is saved before returning;
// a save failure is returned but the in-memory change stands.
type Session struct {
	Key   string
	Store storage.Store

	opts   Options
	mu     sync.Mutex
	engine *invoice.Engine
}

// Open loads the invoice under key, or starts from the default template.
func Open(ctx context.Context, store storage.Store, key string, opts Options) (*Session, error) {
	inv, err := storage.LoadOrDefault(ctx, store, key, opts.now())
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", key, err)
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	return &Session{
		Key:    key,
		Store:  store,
		opts:   opts,
		engine: invoice.NewEngine(inv, opts.engineOpts()...),
	}, nil
}

// Snapshot returns a deep copy safe to read while the session keeps changing.
func (s *Session) Snapshot() *invoice.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Invoice().Clone()
}

func (s *Session) SetField(ctx context.Context, u invoice.InvoiceUpdate) error {
	return s.mutate(ctx, func(e *invoice.Engine) error {
		e.SetField(u)
		return nil
	})
}

func (s *Session) SetSenderField(ctx context.Context, u invoice.SenderUpdate) error {
	return s.mutate(ctx, func(e *invoice.Engine) error {
		e.SetSenderField(u)
		return nil
	})
}

func (s *Session) SetClientField(ctx context.Context, u invoice.PartyUpdate) error {
	return s.mutate(ctx, func(e *invoice.Engine) error {
		e.SetClientField(u)
		return nil
	})
}

func (s *Session) SetItemField(ctx context.Context, index int, u invoice.ItemUpdate) error {
	return s.mutate(ctx, func(e *invoice.Engine) error {
		return e.SetItemField(index, u)
	})
}

func (s *Session) AddItem(ctx context.Context) (invoice.LineItem, error) {
	var item invoice.LineItem
	err := s.mutate(ctx, func(e *invoice.Engine) error {
		item = e.AddItem()
		return nil
	})
	return item, err
}

func (s *Session) RemoveItem(ctx context.Context, index int) error {
	return s.mutate(ctx, func(e *invoice.Engine) error {
		return e.RemoveItem(index)
	})
}

// Reset replaces the invoice with a fresh default template. The document id is kept.
func (s *Session) Reset(ctx context.Context) error {
	return s.mutate(ctx, func(e *invoice.Engine) error {
		inv := invoice.Default(s.opts.now())
		inv.ID = e.Invoice().ID
		s.engine = invoice.NewEngine(inv, s.opts.engineOpts()...)
		return nil
	})
}

func (s *Session) mutate(ctx context.Context, fn func(e *invoice.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.engine); err != nil {
		return err
	}
	if err := storage.SaveInvoice(ctx, s.Store, s.Key, s.engine.Invoice()); err != nil {
		return fmt.Errorf("persist session %q: %w", s.Key, err)
	}
	return nil
}
