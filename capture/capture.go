// Package capture rasterizes a rendered visual surface into a PNG bitmap.
package capture

import (
	"context"
	"fmt"
)

// Surface is a self-contained rendered document ready to be rasterized.
type Surface struct {
	HTML     string
	BaseURL  string   // origin the document is considered to come from
	Selector string   // element to capture
	Width    int      // viewport width in CSS px
	Assets   []string // external resources referenced by HTML (logos etc.)
}

type Options struct {
	ScaleFactor            float64 // device pixels per CSS px
	AllowCrossOriginImages bool
	BackgroundColor        string // #rgb, #rrggbb or #rrggbbaa
}

func DefaultOptions() Options {
	return Options{ScaleFactor: 2, AllowCrossOriginImages: true, BackgroundColor: "#ffffff"}
}

// withDefaults fills zero values
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ScaleFactor <= 0 {
		o.ScaleFactor = d.ScaleFactor
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = d.BackgroundColor
	}
	return o
}

// Rasterizer turns a Surface into PNG bytes. Implementations return *CaptureError on failure.
type Rasterizer interface {
	Capture(ctx context.Context, s Surface, opts Options) ([]byte, error)
}

// CaptureError is returned for any rasterization failure.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func captureErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CaptureError{Op: op, Err: err}
}

// RasterizerFunc adapts a function to Rasterizer.
type RasterizerFunc func(ctx context.Context, s Surface, opts Options) ([]byte, error)

func (f RasterizerFunc) Capture(ctx context.Context, s Surface, opts Options) ([]byte, error) {
	return f(ctx, s, opts)
}
