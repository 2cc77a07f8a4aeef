// Package delivery hands an assembled document to its destination through a transient reference.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/responses"
)

const ContentTypePDF = responses.ContentTypePDF

var nameReplacer = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")

// FileName is the artifact name for an invoice number. Path separators are neutralised.
func FileName(invoiceNumber string) string {
	return "Invoice-" + nameReplacer.Replace(strings.TrimSpace(invoiceNumber)) + ".pdf"
}

type Blob struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Ref is an opaque transient reference to a staged Blob.
type Ref string

// TransientStore holds blobs for a short time. Every Put must be matched by one Release.
type TransientStore interface {
	Put(ctx context.Context, b Blob) (Ref, error)
	Get(ctx context.Context, ref Ref) (Blob, bool, error)
	Release(ctx context.Context, ref Ref) error
}

// Sink is a delivery destination.
type Sink interface {
	Save(ctx context.Context, ref Ref, b Blob) error
}

type Deliverer struct {
	Store TransientStore
}

// Deliver stages data, hands it to sink and releases the staged reference exactly once,
// whether the sink succeeds, fails or panics.
func (d *Deliverer) Deliver(ctx context.Context, name string, data []byte, sink Sink) (err error) {
	blob := Blob{Name: name, ContentType: ContentTypePDF, Data: data}
	ref, err := d.Store.Put(ctx, blob)
	if err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	defer func() {
		// release must not be skipped by a cancelled request context
		if rerr := d.Store.Release(context.WithoutCancel(ctx), ref); rerr != nil {
			logging.Component("delivery").Warn("release transient blob", "ref", ref, "err", rerr)
			err = multierror.Append(err, fmt.Errorf("release %s: %w", ref, rerr)).ErrorOrNil()
		}
	}()
	if err = sink.Save(ctx, ref, blob); err != nil {
		return fmt.Errorf("deliver %s: %w", name, err)
	}
	return nil
}
