package routing

import (
	"net/http"
	"slices"
)

// Router registers handlers behind an optional chain of wrappers.
type Router interface {
	http.Handler
	Handle(pattern string, handler http.Handler, handlerWrappers ...HandlerWrapper)
	HandleFunc(pattern string, handleFunc func(http.ResponseWriter, *http.Request), handlerWrappers ...HandlerWrapper)
}

// BaseRouter is a ServeMux that remembers what was registered on it.
type BaseRouter struct {
	*http.ServeMux
	patterns []string
}

var _ Router = (*BaseRouter)(nil)

func NewBaseRouter() *BaseRouter {
	return &BaseRouter{ServeMux: http.NewServeMux()}
}

// Handle registers handler for pattern. The first wrapper is the outermost.
func (r *BaseRouter) Handle(pattern string, handler http.Handler, handlerWrappers ...HandlerWrapper) {
	for _, hw := range slices.Backward(handlerWrappers) {
		handler = hw.Wrap(handler)
	}
	r.ServeMux.Handle(pattern, handler)
	r.patterns = append(r.patterns, pattern)
}

func (r *BaseRouter) HandleFunc(pattern string, handleFunc func(http.ResponseWriter, *http.Request), handlerWrappers ...HandlerWrapper) {
	r.Handle(pattern, http.HandlerFunc(handleFunc), handlerWrappers...)
}

// Group registers the routes added by batch under prefix, each wrapped by handlerWrappers.
func (r *BaseRouter) Group(prefix string, batch func(*RouteGroup), handlerWrappers ...HandlerWrapper) *RouteGroup {
	g := &RouteGroup{
		Router:          r,
		Prefix:          prefix,
		HandlerWrappers: handlerWrappers,
	}
	batch(g)
	return g
}

// Patterns lists the registered patterns in registration order.
func (r *BaseRouter) Patterns() []string {
	return slices.Clone(r.patterns)
}
