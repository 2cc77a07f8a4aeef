// Package rw wraps writers to keep track of what went through them.
package rw

import (
	"io"
	"net/http"
)

// CountWriter counts the bytes accepted by w.
type CountWriter struct {
	w io.Writer
	n int64
}

func NewCountWriter(w io.Writer) *CountWriter {
	return &CountWriter{w: w}
}

func (cw *CountWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func (cw *CountWriter) Count() int64 {
	return cw.n
}

// ResponseTracker remembers the status and size of a response.
// Once Committed, headers can no longer be changed.
type ResponseTracker struct {
	http.ResponseWriter
	Status  int
	Written int64
}

func (t *ResponseTracker) Committed() bool {
	return t.Status != 0
}

func (t *ResponseTracker) WriteHeader(code int) {
	if t.Status == 0 {
		t.Status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *ResponseTracker) Write(p []byte) (int, error) {
	if t.Status == 0 {
		t.Status = http.StatusOK
	}
	n, err := t.ResponseWriter.Write(p)
	t.Written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (t *ResponseTracker) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
