package responses

import (
	"net/http"

	"github.com/zeptools/invoicer/logging"
)

func WriteHTML(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(html)); err != nil {
		logging.Component("http").Error("writing HTML to response", "err", err)
	}
}
