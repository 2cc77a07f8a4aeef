package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/invoicer/db/kvdb/impls/memory"
	"github.com/zeptools/invoicer/db/sqldb"
	"github.com/zeptools/invoicer/db/sqldb/impls/sqlite"
	"github.com/zeptools/invoicer/invoice"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	sqlite.Register()
	client, err := sqldb.New(&sqldb.Conf{Type: "sqlite", DB: filepath.Join(t.TempDir(), "db", "invoicer.db")})
	require.NoError(t, err)
	require.NoError(t, client.Init())
	t.Cleanup(func() { _ = client.Close() })

	s := NewSQLStore(client)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"file":   &FileStore{Dir: t.TempDir()},
		"kv":     &KVStore{Client: memory.NewClient()},
		"sqlite": newSQLiteStore(t),
	}
}

func TestStores_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inv := invoice.Default(now)
			inv.Client.Name = "Globex"
			inv.Items[0].Quantity = decimal.NewFromInt(3)
			invoice.Recompute(inv)

			require.NoError(t, SaveInvoice(ctx, s, "demo_invoice:1", inv))
			got, err := LoadOrDefault(ctx, s, "demo_invoice:1", now.AddDate(1, 0, 0))
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(inv, got))

			// overwrite with a shorter document
			short := invoice.Default(now)
			short.Notes, short.Terms = "", ""
			require.NoError(t, SaveInvoice(ctx, s, "demo_invoice:1", short))
			got, err = LoadOrDefault(ctx, s, "demo_invoice:1", now)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(short, got))
		})
	}
}

func TestStores_AbsentAndCorrupt(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := LoadOrDefault(ctx, s, "missing", now)
			require.NoError(t, err)
			assert.Equal(t, invoice.DefaultInvoiceNumber, got.InvoiceNumber)
			assert.Equal(t, "2024-03-15", got.Date.String())

			require.NoError(t, s.Save(ctx, "corrupt", []byte(`{"items": [`)))
			got, err = LoadOrDefault(ctx, s, "corrupt", now)
			require.NoError(t, err)
			assert.Equal(t, invoice.DefaultInvoiceNumber, got.InvoiceNumber)
		})
	}
}

func TestDecode_RestoresDerivedFields(t *testing.T) {
	raw := `{"invoiceNumber":"INV-9","currency":"USD","taxRate":10,"discountRate":5,"total":999,
		"items":[{"id":"a","quantity":2,"rate":50,"amount":1},{"id":"b","quantity":1,"rate":30}]}`
	inv, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(inv.Items[0].Amount))
	assert.True(t, decimal.RequireFromString("136.5").Equal(inv.Total))
}

func TestDecode_UnsupportedCurrency(t *testing.T) {
	raw := []byte(`{"invoiceNumber":"INV-9","currency":"JPY","items":[{"id":"a","quantity":1,"rate":5}]}`)
	_, err := Decode(raw)
	assert.ErrorIs(t, err, invoice.ErrInvalidValue)

	ctx := context.Background()
	s := &FileStore{Dir: t.TempDir()}
	require.NoError(t, s.Save(ctx, "yen", raw))
	got, err := LoadOrDefault(ctx, s, "yen", now)
	require.NoError(t, err)
	assert.Equal(t, invoice.DefaultInvoiceNumber, got.InvoiceNumber)
	assert.Equal(t, invoice.USD, got.Currency)
}

func TestFileStore_KeySanitised(t *testing.T) {
	dir := t.TempDir()
	s := &FileStore{Dir: dir}
	require.NoError(t, s.Save(context.Background(), "../app_invoice:x/y", []byte("{}")))
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
