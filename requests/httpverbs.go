package requests

import "net/http"

// HasBody reports whether the method carries a request body
func HasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodDelete:
		return false
	}
	return r.Body != nil && r.Body != http.NoBody
}
