package session

import (
	"context"
	"net/http"

	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/responses"
	"github.com/zeptools/invoicer/routing"
)

// Wrapper ensures every request carries a web session id in its context.
type Wrapper struct {
	Manager *Manager
}

var _ routing.HandlerWrapper = Wrapper{}

func (sw Wrapper) Wrap(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := sw.Manager.Ensure(w, r)
		if err != nil {
			logging.Component("session").Error("cannot establish web session", "err", err)
			responses.WriteSimpleErrorJSON(w, http.StatusInternalServerError, "session unavailable")
			return
		}
		inner.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

type idCtxKey struct{}

// WithID stores the web session id in ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idCtxKey{}, id)
}

func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idCtxKey{}).(string)
	return id, ok && id != ""
}
