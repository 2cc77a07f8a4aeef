package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/metrics"
	"github.com/zeptools/invoicer/pdfs"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type memSink struct {
	saved []delivery.Blob
}

func (s *memSink) Save(_ context.Context, _ delivery.Ref, b delivery.Blob) error {
	s.saved = append(s.saved, b)
	return nil
}

func newExporter(t *testing.T, r capture.Rasterizer) (*Exporter, *delivery.MemoryStore, *metrics.Exports) {
	t.Helper()
	store := delivery.NewMemoryStore(time.Minute)
	m := metrics.NewExports(prometheus.NewRegistry())
	return New(r, pdfs.NewAssembler(), &delivery.Deliverer{Store: store}, capture.DefaultOptions(), m), store, m
}

func TestExport_Success(t *testing.T) {
	img := pngBytes(t, 80, 120)
	var gotOpts capture.Options
	e, store, m := newExporter(t, capture.RasterizerFunc(func(_ context.Context, _ capture.Surface, opts capture.Options) ([]byte, error) {
		gotOpts = opts
		return img, nil
	}))
	sink := &memSink{}

	err := e.Export(context.Background(), capture.Surface{HTML: "<div id=invoice></div>", Width: 800}, "Invoice-INV-001.pdf", sink)
	require.NoError(t, err)

	require.Len(t, sink.saved, 1)
	assert.Equal(t, "Invoice-INV-001.pdf", sink.saved[0].Name)
	assert.Equal(t, "application/pdf", sink.saved[0].ContentType)
	assert.True(t, bytes.HasPrefix(sink.saved[0].Data, []byte("%PDF-")))
	assert.Equal(t, 2.0, gotOpts.ScaleFactor)
	assert.False(t, e.Busy())
	assert.Equal(t, StageIdle, e.Stage())
	assert.Equal(t, 0, store.Len(), "transient released")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Total.WithLabelValues(metrics.ResultSuccess)))
}

func TestExport_CaptureFailure(t *testing.T) {
	cause := &capture.CaptureError{Op: "screenshot", Err: errors.New("tainted canvas")}
	e, store, m := newExporter(t, capture.RasterizerFunc(func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
		return nil, cause
	}))
	surface := capture.Surface{HTML: "<p>x</p>", Width: 800, Assets: []string{"a.png"}}
	sink := &memSink{}

	err := e.Export(context.Background(), surface, "Invoice-1.pdf", sink)

	var ee *Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageCapturing, ee.Stage)
	var ce *capture.CaptureError
	assert.True(t, errors.As(err, &ce))
	assert.False(t, e.Busy())
	assert.Equal(t, StageIdle, e.Stage())
	assert.Empty(t, sink.saved)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []string{"a.png"}, surface.Assets)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Total.WithLabelValues(metrics.ResultError)))

	// the next export runs normally
	e.Rasterizer = capture.RasterizerFunc(func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
		return pngBytes(t, 10, 10), nil
	})
	assert.NoError(t, e.Export(context.Background(), surface, "Invoice-1.pdf", sink))
}

func TestExport_AssemblyFailure(t *testing.T) {
	e, _, _ := newExporter(t, capture.RasterizerFunc(func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
		return []byte("not a png"), nil
	}))

	err := e.Export(context.Background(), capture.Surface{}, "x.pdf", &memSink{})

	var ee *Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageAssembling, ee.Stage)
	var ae *pdfs.AssemblyError
	assert.True(t, errors.As(err, &ae))
	assert.False(t, e.Busy())
}

func TestExport_BusyRejectsReentry(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e, _, m := newExporter(t, capture.RasterizerFunc(func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
		close(entered)
		<-release
		return pngBytes(t, 4, 4), nil
	}))

	done := make(chan error, 1)
	go func() {
		done <- e.Export(context.Background(), capture.Surface{}, "a.pdf", &memSink{})
	}()
	<-entered

	assert.True(t, e.Busy())
	assert.Equal(t, StageCapturing, e.Stage())
	assert.ErrorIs(t, e.Export(context.Background(), capture.Surface{}, "b.pdf", &memSink{}), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.Busy())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Total.WithLabelValues(metrics.ResultBusy)))
}

func TestExport_PanicResetsBusy(t *testing.T) {
	e, _, _ := newExporter(t, capture.RasterizerFunc(func(context.Context, capture.Surface, capture.Options) ([]byte, error) {
		panic("renderer crashed")
	}))

	assert.Panics(t, func() {
		_ = e.Export(context.Background(), capture.Surface{}, "x.pdf", &memSink{})
	})
	assert.False(t, e.Busy())
	assert.Equal(t, StageIdle, e.Stage())
}

func TestExporter_ZeroValueStage(t *testing.T) {
	var e Exporter
	assert.Equal(t, StageIdle, e.Stage())
	assert.False(t, e.Busy())
}
