package requests

import (
	"fmt"
	"net/http"
)

func scheme(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	if s := req.Header.Get("X-Forwarded-Proto"); s != "" {
		return s
	}
	return "http"
}

func FullURL(req *http.Request) string {
	return fmt.Sprintf("%s://%s%s", scheme(req), req.Host, req.URL.RequestURI())
}

// Origin is scheme://host of the request as the client sees it
func Origin(req *http.Request) string {
	return scheme(req) + "://" + req.Host
}
