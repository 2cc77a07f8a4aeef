package pdfs

import "io"

// Writer is an append-only PDF writer without page navigation.
// Images are registered once by name and drawn onto the current page.
type Writer interface {
	PaperSize() PaperSize
	Orientation() string

	AddBlankPage()

	RegisterImage(name string, r io.Reader) error
	DrawImage(name string, p Placement) error

	PageCount() int

	WriteTo(w io.Writer) (int64, error)
	WriteToFile(filepath string) error
	ProduceBytes() ([]byte, error)
}
