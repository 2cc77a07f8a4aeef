package responses

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/zeptools/invoicer/logging"
)

// EncodeWriteJSON Encode & Write Payload as JSON Stream to the Response
func EncodeWriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status) // Response Header Sent & Frozen
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Component("http").Error("writing JSON stream to response", "err", err)
	}
}

// WriteSimpleErrorJSON wraps msg into an error Message without an app logic code
func WriteSimpleErrorJSON(w http.ResponseWriter, status int, msg string) {
	EncodeWriteJSON(w, status, Message{Type: MessageTypeError, Message: msg})
}

func WriteErrorJSON(w http.ResponseWriter, status int, code int, msg string) {
	EncodeWriteJSON(w, status, Message{Type: MessageTypeError, Message: msg, Code: code})
}
