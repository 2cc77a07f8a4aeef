package api

import (
	"errors"
	"net/http"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/export"
	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/pdfs"
	"github.com/zeptools/invoicer/requests"
	"github.com/zeptools/invoicer/responses"
	"github.com/zeptools/invoicer/sec"
)

var (
	errNoSession = errors.New("no web session")
	errThrottled = errors.New("too many exports, try again later")
)

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &badRequestError{err: err}
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var (
		indexErr    *invoice.IndexError
		captureErr  *capture.CaptureError
		assemblyErr *pdfs.AssemblyError
		badReq      *badRequestError
	)
	switch {
	case errors.Is(err, export.ErrBusy), errors.Is(err, invoice.ErrDuplicateItemID):
		return http.StatusConflict
	case errors.Is(err, errThrottled):
		return http.StatusTooManyRequests
	case errors.As(err, &indexErr):
		return http.StatusNotFound
	case errors.As(err, &badReq), errors.Is(err, invoice.ErrUnknownField), errors.Is(err, invoice.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, sec.ErrInvalidLink), errors.Is(err, delivery.ErrUnknownRef):
		return http.StatusNotFound
	case errors.As(err, &captureErr):
		return http.StatusBadGateway
	case errors.As(err, &assemblyErr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	var exportErr *export.Error
	if status >= http.StatusInternalServerError {
		if !errors.As(err, &exportErr) { // the pipeline logs its own failures
			logging.Component("api").Error("request failed", "method", r.Method, "url", requests.FullURL(r), "status", status, "err", err)
		}
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	responses.WriteErrorJSON(w, status, status, msg)
}
