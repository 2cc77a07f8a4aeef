package pdfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestPlaceTopCentered_PortraitBitmap(t *testing.T) {
	p, err := PlaceTopCentered(A4Size, 800, 1200)
	require.NoError(t, err)

	wantScale := min(595.28/800, 841.89/1200)
	assert.InDelta(t, wantScale, p.Scale, eps)
	assert.InDelta(t, 800*wantScale, p.Width, eps)
	assert.InDelta(t, 1200*wantScale, p.Height, eps)
	assert.InDelta(t, 841.89, p.Top(), eps)
	assert.InDelta(t, (595.28-p.Width)/2, p.X, eps)
	assert.InDelta(t, 0, p.TopLeftY(A4Size.Height), eps)
}

func TestPlaceTopCentered_NeverExceedsPage(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
	}{
		{"square", 1, 1},
		{"very tall", 1, 40000},
		{"very wide", 40000, 1},
		{"a4 ratio", 2480, 3508},
		{"tiny", 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PlaceTopCentered(A4Size, tt.w, tt.h)
			require.NoError(t, err)
			assert.LessOrEqual(t, p.Width, A4Size.Width+eps)
			assert.LessOrEqual(t, p.Height, A4Size.Height+eps)
			assert.GreaterOrEqual(t, p.X, -eps)
			assert.GreaterOrEqual(t, p.Y, -eps)
			assert.InDelta(t, A4Size.Height, p.Top(), 1e-6)
			assert.InDelta(t, A4Size.Width-p.Width-p.X, p.X, 1e-6, "centred")
			assert.InDelta(t, tt.w/tt.h, p.Width/p.Height, 1e-6, "aspect ratio kept")
		})
	}
}

func TestPlaceTopCentered_InvalidDimensions(t *testing.T) {
	for _, dims := range [][2]float64{{0, 10}, {10, 0}, {-1, 5}} {
		_, err := PlaceTopCentered(A4Size, dims[0], dims[1])
		assert.Error(t, err, "%v", dims)
	}
}

func TestTopLeftY(t *testing.T) {
	p := Placement{X: 10, Y: 100, Width: 50, Height: 200}
	// top edge at 300 from the bottom is 500 from the top of an 800pt page
	assert.InDelta(t, 500, p.TopLeftY(800), eps)
}

func TestPaperSizeOriented(t *testing.T) {
	l := A4Size.Oriented(Landscape)
	assert.Equal(t, A4Size.Height, l.Width)
	assert.Equal(t, A4Size, A4Size.Oriented(Portrait))
}
