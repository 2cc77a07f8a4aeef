package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#ffffff", want: color.NRGBA{255, 255, 255, 255}},
		{in: "#fff", want: color.NRGBA{255, 255, 255, 255}},
		{in: "#10203040", want: color.NRGBA{0x10, 0x20, 0x30, 0x40}},
		{in: " 0a0b0c ", want: color.NRGBA{0x0a, 0x0b, 0x0c, 255}},
		{in: "white", wantErr: true},
		{in: "#ggg", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlatten(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0})     // fully transparent
	src.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255}) // opaque red
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := Flatten(buf.Bytes(), color.NRGBA{255, 255, 255, 255})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0xffff, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
	r, g, b, a = img.At(1, 0).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a})

	again, err := Flatten(buf.Bytes(), color.NRGBA{255, 255, 255, 255})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestFlatten_NotPNG(t *testing.T) {
	_, err := Flatten([]byte("nope"), color.White)
	assert.Error(t, err)
}
