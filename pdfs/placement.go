package pdfs

import (
	"fmt"
	"math"
)

// Placement is an image rectangle in page space.
// The origin is the bottom-left corner of the page, y grows upward, units are pt.
type Placement struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Scale  float64
}

// Top edge in page space
func (p Placement) Top() float64 {
	return p.Y + p.Height
}

// TopLeftY converts Y to a top-left origin (y grows downward) for writers that draw that way.
func (p Placement) TopLeftY(pageHeight float64) float64 {
	return pageHeight - p.Top()
}

// ScaleToFit scales (imgW, imgH) uniformly to the largest size fitting in (boxW, boxH).
func ScaleToFit(imgW, imgH, boxW, boxH float64) (w, h, scale float64) {
	scale = math.Min(boxW/imgW, boxH/imgH)
	return imgW * scale, imgH * scale, scale
}

// PlaceTopCentered fits an image on the page, centred horizontally and touching the top edge.
func PlaceTopCentered(page PaperSize, imgW, imgH float64) (Placement, error) {
	if !(imgW > 0) || !(imgH > 0) || math.IsInf(imgW, 0) || math.IsInf(imgH, 0) {
		return Placement{}, fmt.Errorf("invalid image dimensions %vx%v", imgW, imgH)
	}
	w, h, scale := ScaleToFit(imgW, imgH, page.Width, page.Height)
	return Placement{
		X:      (page.Width - w) / 2,
		Y:      page.Height - h,
		Width:  w,
		Height: h,
		Scale:  scale,
	}, nil
}
