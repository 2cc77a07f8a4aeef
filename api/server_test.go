package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/db/kvdb/impls/memory"
	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/editor"
	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/metrics"
	"github.com/zeptools/invoicer/pdfs"
	"github.com/zeptools/invoicer/preview"
	"github.com/zeptools/invoicer/sec"
	"github.com/zeptools/invoicer/storage"
	"github.com/zeptools/invoicer/throttle"
	"github.com/zeptools/invoicer/web/session"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 160, 226))))
	return buf.Bytes()
}

type fixture struct {
	t         *testing.T
	srv       *Server
	handler   http.Handler
	downloads *delivery.MemoryStore
	cookie    *http.Cookie
	capture   func(ctx context.Context, s capture.Surface, o capture.Options) ([]byte, error)
}

type fixtureOpt func(d *Deps)

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	mgr, err := session.NewManager("invoicer", session.Conf{
		EncryptionKey: base64.StdEncoding.EncodeToString(key),
		ExpireHardcap: 3600,
		Insecure:      true,
	}, memory.NewClient())
	require.NoError(t, err)

	renderer, err := preview.NewRenderer("http://invoicer.test/")
	require.NoError(t, err)
	signer, err := sec.NewLinkSigner(bytes.Repeat([]byte("k"), 32), "invoicer")
	require.NoError(t, err)

	img := testPNG(t)
	f := &fixture{t: t, downloads: delivery.NewMemoryStore(time.Minute)}
	f.capture = func(context.Context, capture.Surface, capture.Options) ([]byte, error) { return img, nil }

	d := Deps{
		Sessions: editor.NewRegistry("invoicer", &storage.FileStore{Dir: t.TempDir()}, editor.Options{
			Now: func() time.Time { return testNow },
		}),
		WebSession: mgr,
		Renderer:   renderer,
		Rasterizer: capture.RasterizerFunc(func(ctx context.Context, s capture.Surface, o capture.Options) ([]byte, error) {
			return f.capture(ctx, s, o)
		}),
		Assembler:       pdfs.NewAssembler(),
		Options:         capture.DefaultOptions(),
		Exports:         metrics.NewExports(prometheus.NewRegistry()),
		Transients:      delivery.NewMemoryStore(time.Minute),
		Downloads:       f.downloads,
		Signer:          signer,
		LinkTTL:         time.Minute,
		MetricsRegistry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	f.srv = New(d)
	f.handler = f.srv.Routes()
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(f.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "http://invoicer.test"+path, r)
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			f.cookie = c
		}
	}
	return rec
}

func (f *fixture) invoice(rec *httptest.ResponseRecorder) *invoice.Invoice {
	f.t.Helper()
	var inv invoice.Invoice
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &inv), rec.Body.String())
	return &inv
}

func (f *fixture) sessionID() string {
	f.t.Helper()
	ids := f.srv.Sessions.IDs()
	require.Len(f.t, ids, 1)
	return ids[0]
}

func patch(field string, value any) map[string]any {
	return map[string]any{"field": field, "value": value}
}

func TestInvoice_GetDefault(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.cookie, "session cookie set")

	inv := f.invoice(rec)
	assert.Equal(t, "INV-001", inv.InvoiceNumber)
	assert.Equal(t, "2024-03-08", inv.DueDate.String())
	assert.Len(t, inv.Items, 1)
	assert.Contains(t, rec.Body.String(), `"total":100`)
}

func TestCurrencies(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/currencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"code":"USD","symbol":"$","label":"US Dollar"},
		{"code":"EUR","symbol":"€","label":"Euro"},
		{"code":"GBP","symbol":"£","label":"British Pound"}
	]`, rec.Body.String())
}

func TestInvoice_EditScenario(t *testing.T) {
	f := newFixture(t)
	steps := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodPatch, "/api/invoice/items/0", patch("quantity", 2), http.StatusOK},
		{http.MethodPatch, "/api/invoice/items/0", patch("rate", "50"), http.StatusOK},
		{http.MethodPost, "/api/invoice/items", nil, http.StatusCreated},
		{http.MethodPatch, "/api/invoice/items/1", patch("rate", 30), http.StatusOK},
		{http.MethodPatch, "/api/invoice", patch("taxRate", 10), http.StatusOK},
		{http.MethodPatch, "/api/invoice", patch("discountRate", 5), http.StatusOK},
		{http.MethodPatch, "/api/invoice/sender", patch("name", "Acme"), http.StatusOK},
		{http.MethodPatch, "/api/invoice/sender", patch("logo", "data:image/png;base64,AAAA"), http.StatusOK},
		{http.MethodPatch, "/api/invoice/client", patch("address", "1 Main St\nSpringfield"), http.StatusOK},
	}
	var rec *httptest.ResponseRecorder
	for _, s := range steps {
		rec = f.do(s.method, s.path, s.body)
		require.Equal(t, s.want, rec.Code, "%s %s: %s", s.method, s.path, rec.Body.String())
	}

	inv := f.invoice(rec)
	assert.True(t, invoice.CoerceDecimal("130").Equal(inv.Subtotal), "subtotal %s", inv.Subtotal)
	assert.True(t, invoice.CoerceDecimal("13").Equal(inv.TaxAmount))
	assert.True(t, invoice.CoerceDecimal("6.5").Equal(inv.DiscountAmount))
	assert.True(t, invoice.CoerceDecimal("136.5").Equal(inv.Total))
	assert.Equal(t, "Acme", inv.Sender.Name)
	assert.Equal(t, "1 Main St\nSpringfield", inv.Client.Address)

	// persisted: a fresh registry over the same store sees the same document
	sess, err := editor.Open(context.Background(), f.srv.Sessions.Store, editor.Key("invoicer", f.sessionID()), editor.Options{})
	require.NoError(t, err)
	assert.True(t, sess.Snapshot().Total.Equal(inv.Total))
}

func TestInvoice_Errors(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/api/invoice/items", nil) // two items: ids "1" and a uuid

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "unknown field", method: http.MethodPatch, path: "/api/invoice", body: patch("colour", "red"), want: http.StatusBadRequest},
		{name: "unknown party field", method: http.MethodPatch, path: "/api/invoice/client", body: patch("logo", "x"), want: http.StatusBadRequest},
		{name: "no body", method: http.MethodPatch, path: "/api/invoice", want: http.StatusBadRequest},
		{name: "bad body", method: http.MethodPatch, path: "/api/invoice", body: "{", want: http.StatusBadRequest},
		{name: "missing field", method: http.MethodPatch, path: "/api/invoice", body: map[string]any{"value": 1}, want: http.StatusBadRequest},
		{name: "bad date", method: http.MethodPatch, path: "/api/invoice", body: patch("date", "01/02/2024"), want: http.StatusBadRequest},
		{name: "bad currency", method: http.MethodPatch, path: "/api/invoice", body: patch("currency", "JPY"), want: http.StatusBadRequest},
		{name: "index out of range", method: http.MethodPatch, path: "/api/invoice/items/5", body: patch("rate", 1), want: http.StatusNotFound},
		{name: "negative index", method: http.MethodDelete, path: "/api/invoice/items/-1", want: http.StatusNotFound},
		{name: "non numeric index", method: http.MethodPatch, path: "/api/invoice/items/abc", body: patch("rate", 1), want: http.StatusBadRequest},
		{name: "duplicate id", method: http.MethodPatch, path: "/api/invoice/items/1", body: patch("id", "1"), want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.do(http.MethodGet, "/api/invoice", nil).Body.String()
			rec := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"type":"error"`)
			assert.Equal(t, before, f.do(http.MethodGet, "/api/invoice", nil).Body.String(), "invoice unchanged")
		})
	}
}

func TestInvoice_NonNumericCoercesToZero(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPatch, "/api/invoice/items/0", patch("rate", "abc"))
	require.Equal(t, http.StatusOK, rec.Code)
	inv := f.invoice(rec)
	assert.True(t, inv.Items[0].Rate.IsZero())
	assert.True(t, inv.Total.IsZero())
}

func TestInvoice_ItemsAndReset(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodDelete, "/api/invoice/items/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.invoice(rec).Items, 1, "last item is never removed")

	f.do(http.MethodPost, "/api/invoice/items", nil)
	rec = f.do(http.MethodPost, "/api/invoice/items", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, f.invoice(rec).Items, 3)

	rec = f.do(http.MethodDelete, "/api/invoice/items/0", nil)
	inv := f.invoice(rec)
	assert.Len(t, inv.Items, 2)
	assert.True(t, inv.Total.IsZero(), "remaining blank items have rate 0")

	f.do(http.MethodPatch, "/api/invoice", patch("invoiceNumber", "X-9"))
	rec = f.do(http.MethodPost, "/api/invoice/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inv = f.invoice(rec)
	assert.Equal(t, "INV-001", inv.InvoiceNumber)
	assert.Len(t, inv.Items, 1)
}

func TestSessions_AreIsolated(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPatch, "/api/invoice", patch("invoiceNumber", "A-1"))
	first := f.cookie

	f.cookie = nil
	rec := f.do(http.MethodGet, "/api/invoice", nil)
	assert.Equal(t, "INV-001", f.invoice(rec).InvoiceNumber)
	assert.NotEqual(t, first.Value, f.cookie.Value)

	f.cookie = first
	rec = f.do(http.MethodGet, "/api/invoice", nil)
	assert.Equal(t, "A-1", f.invoice(rec).InvoiceNumber)
	assert.Len(t, f.srv.Sessions.IDs(), 2)
}

func TestEndSession(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPatch, "/api/invoice", patch("invoiceNumber", "OLD-1"))
	old := f.sessionID()

	rec := f.do(http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.srv.Sessions.Len())

	f.cookie = nil
	rec = f.do(http.MethodGet, "/api/invoice", nil)
	assert.Equal(t, "INV-001", f.invoice(rec).InvoiceNumber)
	assert.NotEqual(t, old, f.sessionID())
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPatch, "/api/invoice", patch("taxRate", 10))
	rec := f.do(http.MethodGet, "/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `id="invoice"`)
	assert.Contains(t, rec.Body.String(), "Tax (10%)")
	assert.Contains(t, rec.Body.String(), "$110.00")
}

func TestExport_Attachment(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPatch, "/api/invoice", patch("invoiceNumber", "INV-042"))

	var gotSurface capture.Surface
	img := testPNG(t)
	f.capture = func(_ context.Context, s capture.Surface, _ capture.Options) ([]byte, error) {
		gotSurface = s
		return img, nil
	}
	rec := f.do(http.MethodPost, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename=Invoice-INV-042.pdf`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, "#invoice", gotSurface.Selector)
	assert.Contains(t, gotSurface.HTML, "INV-042")

	rec = f.do(http.MethodGet, "/api/export/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"generating":false,"stage":"idle"}`, rec.Body.String())
}

func TestExport_Failures(t *testing.T) {
	tests := []struct {
		name    string
		capture func(context.Context, capture.Surface, capture.Options) ([]byte, error)
		want    int
	}{
		{
			name: "capture error",
			capture: func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
				return nil, &capture.CaptureError{Op: "policy", Err: capture.ErrCrossOrigin}
			},
			want: http.StatusBadGateway,
		},
		{
			name: "assembly error",
			capture: func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
				return []byte("not a png"), nil
			},
			want: http.StatusInternalServerError,
		},
		{
			name: "other error",
			capture: func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
				return nil, errors.New("boom")
			},
			want: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.capture = tt.capture
			rec := f.do(http.MethodPost, "/api/export", nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.False(t, f.srv.Exporter(f.sessionID()).Busy())
		})
	}
}

func TestExport_LinkAndDownloadOnce(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/export?delivery=link", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var link linkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	require.True(t, strings.HasPrefix(link.URL, "http://invoicer.test/downloads/"), link.URL)
	assert.Equal(t, 1, f.downloads.Len())

	path := strings.TrimPrefix(link.URL, "http://invoicer.test")
	rec = f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Invoice-INV-001.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = f.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "served once")
	assert.Equal(t, 0, f.downloads.Len())

	rec = f.do(http.MethodGet, "/downloads/garbage", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport_BusyAndThrottled(t *testing.T) {
	t.Run("same session in flight", func(t *testing.T) {
		f := newFixture(t)
		f.do(http.MethodGet, "/api/invoice", nil)
		release, ok := f.srv.locks.TryLock("export:" + f.sessionID())
		require.True(t, ok)
		defer release()

		rec := f.do(http.MethodPost, "/api/export", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("throttled per client", func(t *testing.T) {
		buckets := throttle.NewBucketStore[string](context.Background(), time.Minute, time.Hour)
		buckets.SetBucketGroup(ThrottleGroup, &throttle.BucketConf{Burst: 1, Increment: 1, Period: time.Hour})
		f := newFixture(t, func(d *Deps) { d.Throttle = buckets })

		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/export", nil).Code)
		rec := f.do(http.MethodPost, "/api/export", nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	f := newFixture(t, func(d *Deps) {
		d.MetricsRegistry = reg
		d.Exports = metrics.NewExports(reg)
	})
	f.do(http.MethodPost, "/api/export", nil)

	rec := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `invoicer_exports_total{result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "invoicer_export_stage_seconds")
}

func TestAdminCommands(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPatch, "/api/invoice", patch("invoiceNumber", "ADM-7"))
	id := f.sessionID()
	cmds := f.srv.AdminCommands()
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, cmds["sessions"].Fn(ctx, nil, &out))
	assert.Contains(t, out.String(), "1 open sessions")
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "ADM-7")

	dir := t.TempDir()
	out.Reset()
	require.NoError(t, cmds["export"].Fn(ctx, []string{id, dir}, &out))
	data, err := os.ReadFile(filepath.Join(dir, "Invoice-ADM-7.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	assert.Error(t, cmds["export"].Fn(ctx, []string{"nope", dir}, &out))
	assert.Error(t, cmds["reset"].Fn(ctx, nil, &out))

	out.Reset()
	require.NoError(t, cmds["reset"].Fn(ctx, []string{id}, &out))
	sess, _ := f.srv.Sessions.Lookup(id)
	assert.Equal(t, "INV-001", sess.Snapshot().InvoiceNumber)

	f.do(http.MethodPost, "/api/export?delivery=link", nil)
	assert.Equal(t, 1, f.downloads.Len())
	assert.Equal(t, 1, f.srv.SweepTransients(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, f.downloads.Len())
}
