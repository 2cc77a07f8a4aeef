package routing

import (
	"net/http"
	"runtime/debug"

	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/responses"
)

// Recover turns a handler panic into a 500 JSON error.
var Recover = WrapperFunc(RecoverWrapper)

func RecoverWrapper(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Component("http").Error("panic recovered", "panic", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
				responses.WriteSimpleErrorJSON(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		inner.ServeHTTP(w, r)
	})
}
