package delivery

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeptools/invoicer/responses"
	"github.com/zeptools/invoicer/sec"
)

// FileSink writes the blob into Dir under its name. The file appears atomically.
type FileSink struct {
	Dir string

	Path string // set after a successful Save
}

func (s *FileSink) Save(ctx context.Context, _ Ref, b Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, ".invoicer-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename
	if _, err = tmp.Write(b.Data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	dst := filepath.Join(s.Dir, filepath.Base(b.Name))
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return err
	}
	s.Path = dst
	return nil
}

// ResponseSink streams the blob as an HTTP attachment.
type ResponseSink struct {
	W http.ResponseWriter
}

func (s *ResponseSink) Save(_ context.Context, _ Ref, b Blob) error {
	return responses.WritePDFBytesWithFilename(s.W, b.Name, b.Data)
}

// LinkSink re-stages the blob in Downloads and mints a signed, expiring download link for it.
type LinkSink struct {
	Downloads TransientStore
	Signer    *sec.LinkSigner
	TTL       time.Duration
	BaseURL   string // e.g. https://host, the link is BaseURL/downloads/<token>

	URL string // set after a successful Save
}

func (s *LinkSink) Save(ctx context.Context, _ Ref, b Blob) error {
	ref, err := s.Downloads.Put(ctx, b)
	if err != nil {
		return err
	}
	token, err := s.Signer.Sign(string(ref), b.Name, s.TTL)
	if err != nil {
		_ = s.Downloads.Release(ctx, ref)
		return fmt.Errorf("sign link: %w", err)
	}
	s.URL = strings.TrimSuffix(s.BaseURL, "/") + "/downloads/" + token
	return nil
}

// Redeem verifies a download token and hands back its blob once. The staged copy is released.
func Redeem(ctx context.Context, downloads TransientStore, signer *sec.LinkSigner, token string) (Blob, error) {
	claims, err := signer.Verify(token)
	if err != nil {
		return Blob{}, err
	}
	ref := Ref(claims.Ref)
	b, found, err := downloads.Get(ctx, ref)
	if err != nil {
		return Blob{}, err
	}
	if !found {
		return Blob{}, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	if err = downloads.Release(ctx, ref); err != nil {
		return Blob{}, err
	}
	return b, nil
}
