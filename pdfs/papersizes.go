package pdfs

type PaperSize struct {
	Name   string
	Width  float64 // in `pt` (1" = 72pts)
	Height float64 // in `pt`
}

const (
	Portrait  = "P"
	Landscape = "L"
)

var (
	LetterSize = PaperSize{Name: "Letter", Width: 612, Height: 792}   // 8.5" x 11"
	A4Size     = PaperSize{Name: "A4", Width: 595.28, Height: 841.89} // 210mm x 297mm
)

// Oriented swaps the dimensions for landscape
func (p PaperSize) Oriented(orientation string) PaperSize {
	if orientation == Landscape && p.Width < p.Height {
		p.Width, p.Height = p.Height, p.Width
	}
	return p
}
