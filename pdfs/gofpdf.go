package pdfs

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/zeptools/invoicer/rw"
)

// DocumentDate is stamped as the creation date so identical input gives identical bytes.
var DocumentDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

var pngOptions = gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}

// GoFPDFWriter implements Writer on gofpdf. Units are pt.
type GoFPDFWriter struct {
	pdf         *gofpdf.Fpdf
	paperSize   PaperSize
	orientation string
}

func NewGoFPDFWriter(paperSize PaperSize, orientation string) *GoFPDFWriter {
	if orientation != Landscape {
		orientation = Portrait
	}
	size := paperSize.Oriented(orientation)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: paperSize.Width, Ht: paperSize.Height},
	})
	pdf.SetCreationDate(DocumentDate)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	return &GoFPDFWriter{pdf: pdf, paperSize: size, orientation: orientation}
}

func (w *GoFPDFWriter) PaperSize() PaperSize {
	return w.paperSize
}

func (w *GoFPDFWriter) Orientation() string {
	return w.orientation
}

func (w *GoFPDFWriter) AddBlankPage() {
	w.pdf.AddPage()
}

func (w *GoFPDFWriter) RegisterImage(name string, r io.Reader) error {
	w.pdf.RegisterImageOptionsReader(name, pngOptions, r)
	return w.pdf.Error()
}

// DrawImage draws on the current page. gofpdf measures y from the top so the placement is converted here.
func (w *GoFPDFWriter) DrawImage(name string, p Placement) error {
	if w.pdf.PageCount() == 0 {
		return fmt.Errorf("draw %q: no page", name)
	}
	y := p.TopLeftY(w.paperSize.Height)
	w.pdf.ImageOptions(name, p.X, y, p.Width, p.Height, false, pngOptions, 0, "")
	return w.pdf.Error()
}

func (w *GoFPDFWriter) PageCount() int {
	return w.pdf.PageCount()
}

// WriteTo implements io.WriterTo
func (w *GoFPDFWriter) WriteTo(dst io.Writer) (int64, error) {
	cw := rw.NewCountWriter(dst)
	err := w.pdf.Output(cw)
	return cw.Count(), err
}

func (w *GoFPDFWriter) WriteToFile(filepath string) error {
	return w.pdf.OutputFileAndClose(filepath)
}

func (w *GoFPDFWriter) ProduceBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
