// Package storage persists invoice documents under a storage key.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/logging"
)

// Store is the persisted-state collaborator. Values are opaque bytes.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error) // data, found, err
	Save(ctx context.Context, key string, data []byte) error
}

func Encode(inv *invoice.Invoice) ([]byte, error) {
	return json.Marshal(inv)
}

// Decode parses a stored document and restores its derived fields.
// A document with an unsupported currency is rejected.
func Decode(data []byte) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	if !inv.Currency.Valid() {
		return nil, fmt.Errorf("%w: currency %q", invoice.ErrInvalidValue, inv.Currency)
	}
	invoice.Recompute(&inv)
	return &inv, nil
}

func SaveInvoice(ctx context.Context, s Store, key string, inv *invoice.Invoice) error {
	data, err := Encode(inv)
	if err != nil {
		return err
	}
	return s.Save(ctx, key, data)
}

// LoadOrDefault loads the document under key. Absent or unparsable data yields the default template dated now.
// Only backend failures are returned as errors.
func LoadOrDefault(ctx context.Context, s Store, key string, now time.Time) (*invoice.Invoice, error) {
	data, found, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found || len(data) == 0 {
		return invoice.Default(now), nil
	}
	inv, err := Decode(data)
	if err != nil {
		logging.Component("storage").Warn("stored invoice unreadable, using default", "key", key, "err", err)
		return invoice.Default(now), nil
	}
	return inv, nil
}
