package pdfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
)

const (
	StageDecode    = "decode"
	StageEmbed     = "embed"
	StagePlace     = "place"
	StageSerialize = "serialize"
)

var ErrEmptyImage = errors.New("image has zero dimensions")

// AssemblyError reports which assembly step failed.
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble pdf: %s: %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

const pageImageName = "page"

// Assembler turns one PNG into a single-page document.
type Assembler struct {
	Page      PaperSize
	NewWriter func(PaperSize) Writer
}

func NewAssembler() *Assembler {
	return &Assembler{Page: A4Size}
}

func (a *Assembler) writer() Writer {
	page := a.Page
	if page.Width == 0 || page.Height == 0 {
		page = A4Size
	}
	if a.NewWriter != nil {
		return a.NewWriter(page)
	}
	return NewGoFPDFWriter(page, Portrait)
}

// Assemble embeds png on one page, scaled to fit and anchored top-centre, and serialises the document.
// The image is never cropped and the result always has exactly one page.
func (a *Assembler) Assemble(ctx context.Context, png []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, &AssemblyError{Stage: StageDecode, Err: err}
	}
	if format != "png" {
		return nil, &AssemblyError{Stage: StageDecode, Err: fmt.Errorf("unsupported image format %q", format)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &AssemblyError{Stage: StageDecode, Err: ErrEmptyImage}
	}
	if err := ctx.Err(); err != nil {
		return nil, &AssemblyError{Stage: StageEmbed, Err: err}
	}

	w := a.writer()
	w.AddBlankPage()
	if err := w.RegisterImage(pageImageName, bytes.NewReader(png)); err != nil {
		return nil, &AssemblyError{Stage: StageEmbed, Err: err}
	}
	placement, err := PlaceTopCentered(w.PaperSize(), float64(cfg.Width), float64(cfg.Height))
	if err != nil {
		return nil, &AssemblyError{Stage: StagePlace, Err: err}
	}
	if err := w.DrawImage(pageImageName, placement); err != nil {
		return nil, &AssemblyError{Stage: StagePlace, Err: err}
	}
	if n := w.PageCount(); n != 1 {
		return nil, &AssemblyError{Stage: StagePlace, Err: fmt.Errorf("document has %d pages", n)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &AssemblyError{Stage: StageSerialize, Err: err}
	}

	out, err := w.ProduceBytes()
	if err != nil {
		return nil, &AssemblyError{Stage: StageSerialize, Err: err}
	}
	return out, nil
}
