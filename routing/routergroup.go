package routing

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// RouteGroup registers routes under a common Prefix, wrapped by the group's HandlerWrappers.
type RouteGroup struct {
	Router          // [Embedded Interface]
	Prefix          string
	HandlerWrappers []HandlerWrapper // Group Handler Wrappers
}

// Ensure RouteGroup implements Router
var _ Router = (*RouteGroup)(nil)

// Handle registers subpattern, either "<path>" or "<METHOD> <path>", under the group prefix.
//
// Wrappers nest outermost first: group wrappers in order, then the route's own wrappers, then handler.
func (g *RouteGroup) Handle(subpattern string, handler http.Handler, handlerWrappers ...HandlerWrapper) {
	fullPattern := g.Prefix + subpattern
	if method, subpath, ok := strings.Cut(subpattern, " "); ok {
		fullPattern = method + " " + g.Prefix + subpath
	}
	if strings.Contains(fullPattern, "//") {
		panic(fmt.Sprintf("routing: cannot register pattern %q", fullPattern))
	}
	wrapped := handler
	for i := len(handlerWrappers) - 1; i >= 0; i-- {
		wrapped = handlerWrappers[i].Wrap(wrapped)
	}
	for i := len(g.HandlerWrappers) - 1; i >= 0; i-- {
		wrapped = g.HandlerWrappers[i].Wrap(wrapped)
	}
	g.Router.Handle(fullPattern, wrapped)
}

func (g *RouteGroup) HandleFunc(subpattern string, handleFunc func(http.ResponseWriter, *http.Request), handlerWrappers ...HandlerWrapper) {
	g.Handle(subpattern, http.HandlerFunc(handleFunc), handlerWrappers...)
}

// Group on *RouteGroup makes a Subgroup
//
//	router.Group("/api", func(api *RouteGroup) {
//	  api.Handle("GET /invoice", getInvoice)              // "GET /api/invoice"
//	  api.Group("/invoice/items", func(items *RouteGroup) {
//	    items.Handle("PATCH /{index}", patchItem)         // "PATCH /api/invoice/items/{index}"
//	  })
//	})
func (g *RouteGroup) Group(subPrefix string, batch func(*RouteGroup), handlerWrappers ...HandlerWrapper) *RouteGroup {
	subg := &RouteGroup{
		Router:          g.Router,
		Prefix:          g.Prefix + subPrefix,
		HandlerWrappers: append(slices.Clone(g.HandlerWrappers), handlerWrappers...),
	}
	batch(subg)
	return subg
}
