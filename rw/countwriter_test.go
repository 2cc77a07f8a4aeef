package rw

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCountWriter(&buf)
	_, _ = cw.Write([]byte("%PDF-"))
	_, _ = cw.Write([]byte("1.3"))
	assert.Equal(t, int64(8), cw.Count())
	assert.Equal(t, "%PDF-1.3", buf.String())
}

func TestResponseTracker(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantBytes  int64
	}{
		{name: "untouched", write: func(http.ResponseWriter) {}},
		{
			name:       "implicit ok",
			write:      func(w http.ResponseWriter) { _, _ = w.Write([]byte("abc")) },
			wantStatus: http.StatusOK,
			wantBytes:  3,
		},
		{
			name: "explicit status kept",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusCreated)
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("{}"))
			},
			wantStatus: http.StatusCreated,
			wantBytes:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &ResponseTracker{ResponseWriter: httptest.NewRecorder()}
			tt.write(tr)
			assert.Equal(t, tt.wantStatus, tr.Status)
			assert.Equal(t, tt.wantStatus != 0, tr.Committed())
			assert.Equal(t, tt.wantBytes, tr.Written)
		})
	}
}
