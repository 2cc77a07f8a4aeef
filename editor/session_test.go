package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/storage"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type mapStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	failErr error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *mapStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saves++
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func testOptions() Options {
	n := 0
	return Options{
		Now: func() time.Time { return testNow },
		IDGenerator: func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		},
	}
}

func stored(t *testing.T, s *mapStore, key string) *invoice.Invoice {
	t.Helper()
	data, ok, err := s.Load(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "nothing stored under %s", key)
	inv, err := storage.Decode(data)
	require.NoError(t, err)
	return inv
}

func TestOpen_DefaultWhenAbsent(t *testing.T) {
	store := newMapStore()
	s, err := Open(context.Background(), store, CLIKey, testOptions())
	require.NoError(t, err)

	inv := s.Snapshot()
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, invoice.DefaultInvoiceNumber, inv.InvoiceNumber)
	assert.Equal(t, "2024-03-01", inv.Date.String())
	assert.Zero(t, store.saves, "open does not persist")
}

func TestOpen_LoadsStored(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	inv := invoice.Default(testNow)
	inv.ID = "doc-1"
	inv.InvoiceNumber = "INV-042"
	require.NoError(t, storage.SaveInvoice(ctx, store, "k", inv))

	s, err := Open(ctx, store, "k", testOptions())
	require.NoError(t, err)
	got := s.Snapshot()
	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, "INV-042", got.InvoiceNumber)
}

func TestSession_MutationsPersist(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	s, err := Open(ctx, store, "k", testOptions())
	require.NoError(t, err)

	require.NoError(t, s.SetItemField(ctx, 0, invoice.SetItemQuantity{Value: decimal.NewFromInt(2)}))
	require.NoError(t, s.SetItemField(ctx, 0, invoice.SetItemRate{Value: decimal.NewFromInt(50)}))
	item, err := s.AddItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", item.ID)
	require.NoError(t, s.SetItemField(ctx, 1, invoice.SetItemRate{Value: decimal.NewFromInt(30)}))
	require.NoError(t, s.SetField(ctx, invoice.SetTaxRate{Value: decimal.NewFromInt(10)}))
	require.NoError(t, s.SetField(ctx, invoice.SetDiscountRate{Value: decimal.NewFromInt(5)}))
	require.NoError(t, s.SetSenderField(ctx, invoice.SetPartyName{Value: "Acme"}))
	require.NoError(t, s.SetClientField(ctx, invoice.SetPartyEmail{Value: "ap@globex.test"}))

	got := stored(t, store, "k")
	assert.True(t, decimal.NewFromInt(130).Equal(got.Subtotal), "subtotal %s", got.Subtotal)
	assert.True(t, decimal.RequireFromString("136.5").Equal(got.Total), "total %s", got.Total)
	assert.Equal(t, "Acme", got.Sender.Name)
	assert.Equal(t, "ap@globex.test", got.Client.Email)
	assert.Equal(t, 8, store.saves)

	require.NoError(t, s.RemoveItem(ctx, 1))
	assert.Len(t, stored(t, store, "k").Items, 1)
}

func TestSession_ErrorsDoNotPersist(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	s, err := Open(ctx, store, "k", testOptions())
	require.NoError(t, err)

	err = s.SetItemField(ctx, 3, invoice.SetItemRate{Value: decimal.NewFromInt(1)})
	var ie *invoice.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 3, ie.Index)

	err = s.RemoveItem(ctx, -1)
	assert.ErrorIs(t, err, invoice.ErrIndexOutOfRange)
	assert.Zero(t, store.saves)
}

func TestSession_PersistFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.failErr = errors.New("disk full")
	s, err := Open(ctx, store, "k", testOptions())
	require.NoError(t, err)

	err = s.SetField(ctx, invoice.SetNotes{Value: "kept"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.failErr)
	assert.Equal(t, "kept", s.Snapshot().Notes)
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	s, err := Open(ctx, store, "k", testOptions())
	require.NoError(t, err)
	id := s.Snapshot().ID

	require.NoError(t, s.SetField(ctx, invoice.SetInvoiceNumber{Value: "X-1"}))
	_, err = s.AddItem(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	got := s.Snapshot()
	assert.Equal(t, id, got.ID)
	assert.Equal(t, invoice.DefaultInvoiceNumber, got.InvoiceNumber)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, invoice.DefaultInvoiceNumber, stored(t, store, "k").InvoiceNumber)
}

func TestSession_SnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, newMapStore(), "k", testOptions())
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Items[0].Description = "changed outside"
	snap.Items = append(snap.Items, invoice.LineItem{ID: "x"})

	got := s.Snapshot()
	assert.Equal(t, "Web Development Services", got.Items[0].Description)
	assert.Len(t, got.Items, 1)
}

func TestSession_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, newMapStore(), "k", Options{Now: func() time.Time { return testNow }})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddItem(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	inv := s.Snapshot()
	assert.Len(t, inv.Items, 21)
	seen := make(map[string]bool)
	for _, item := range inv.Items {
		assert.False(t, seen[item.ID], "duplicate id %s", item.ID)
		seen[item.ID] = true
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	r := NewRegistry("invoicer", store, testOptions())

	assert.Equal(t, "invoicer_invoice:abc", Key("invoicer", "abc"))

	a, err := r.Get(ctx, "b")
	require.NoError(t, err)
	again, err := r.Get(ctx, "b")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, "invoicer_invoice:b", a.Key)

	_, err = r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.IDs())
	assert.Equal(t, 2, r.Len())

	_, ok := r.Lookup("missing")
	assert.False(t, ok)
}
