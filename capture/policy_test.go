package capture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAssets(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		assets  []string
		allow   bool
		wantErr bool
	}{
		{name: "allowed when permitted", base: "http://localhost:8080", assets: []string{"https://cdn.example.com/a.png"}, allow: true},
		{name: "same origin", base: "http://localhost:8080/preview", assets: []string{"http://localhost:8080/logo.png"}},
		{name: "default port normalised", base: "https://example.com", assets: []string{"https://EXAMPLE.com:443/logo.png"}},
		{name: "data uri", base: "http://localhost:8080", assets: []string{"data:image/png;base64,iVBORw0KGgo="}},
		{name: "relative", base: "http://localhost:8080", assets: []string{"/static/logo.png", "logo.png"}},
		{name: "blank entries skipped", base: "http://localhost:8080", assets: []string{"", "  "}},
		{name: "other host", base: "http://localhost:8080", assets: []string{"https://cdn.example.com/a.png"}, wantErr: true},
		{name: "other port", base: "http://localhost:8080", assets: []string{"http://localhost:9090/a.png"}, wantErr: true},
		{name: "other scheme", base: "http://example.com", assets: []string{"https://example.com/a.png"}, wantErr: true},
		{name: "no base", assets: []string{"https://example.com/a.png"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Surface{BaseURL: tt.base, Assets: tt.assets}
			err := CheckAssets(s, Options{AllowCrossOriginImages: tt.allow})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ce *CaptureError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "policy", ce.Op)
			assert.ErrorIs(t, err, ErrCrossOrigin)
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	assert.Equal(t, Options{ScaleFactor: 2, AllowCrossOriginImages: true, BackgroundColor: "#ffffff"}, DefaultOptions())

	o := Options{AllowCrossOriginImages: false}.withDefaults()
	assert.Equal(t, 2.0, o.ScaleFactor)
	assert.Equal(t, "#ffffff", o.BackgroundColor)
	assert.False(t, o.AllowCrossOriginImages)
}
