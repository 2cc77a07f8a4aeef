package responses

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/zeptools/invoicer/logging"
)

const ContentTypePDF = "application/pdf"

// WritePDFBytesWithFilename sends PDF bytes as a download named filename
func WritePDFBytesWithFilename(w http.ResponseWriter, filename string, PDFBytes []byte) error {
	WritePDFResponseHeaders(w, filename, len(PDFBytes))
	_, err := w.Write(PDFBytes)
	if err != nil {
		logging.Component("http").Error("writing PDF to response", "file", filename, "err", err)
	}
	return err
}

// WritePDFResponseHeaders write HTTP response headers for PDF response. i.e. headers are frozen
func WritePDFResponseHeaders(w http.ResponseWriter, filename string, size int) {
	w.Header().Set("Content-Type", ContentTypePDF)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.Itoa(size))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK) // Response Header Sent & Frozen
}
