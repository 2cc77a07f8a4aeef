// Package api is the HTTP form boundary of the invoice editor: engine operations, preview and export.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/editor"
	"github.com/zeptools/invoicer/export"
	"github.com/zeptools/invoicer/locks/keyonlylocks"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/metrics"
	"github.com/zeptools/invoicer/preview"
	"github.com/zeptools/invoicer/routing"
	"github.com/zeptools/invoicer/sec"
	"github.com/zeptools/invoicer/throttle"
	"github.com/zeptools/invoicer/web/session"
)

// ThrottleGroup is the bucket group export requests are charged to, per client IP.
const ThrottleGroup = "export"

// Deps are the collaborators of a Server. Throttle and MetricsRegistry are optional.
type Deps struct {
	Sessions   *editor.Registry
	WebSession *session.Manager
	Renderer   *preview.Renderer

	Rasterizer capture.Rasterizer
	Assembler  export.Assembler
	Options    capture.Options
	Exports    *metrics.Exports

	Transients delivery.TransientStore // staging during delivery
	Downloads  delivery.TransientStore // artifacts waiting behind a link
	Signer     *sec.LinkSigner
	LinkTTL    time.Duration
	BaseURL    string // public origin for links; the request origin when empty

	Throttle        *throttle.BucketStore[string]
	MetricsRegistry *prometheus.Registry
}

type Server struct {
	Deps

	locks     keyonlylocks.Set
	exporters sync.Map // session id -> *export.Exporter
	now       func() time.Time
}

func New(d Deps) *Server {
	return &Server{Deps: d, now: time.Now}
}

// Routes builds the router. Every route except downloads and metrics runs inside a web session.
func (s *Server) Routes() http.Handler {
	r := routing.NewBaseRouter()
	withSession := session.Wrapper{Manager: s.WebSession}

	r.Group("/api", func(api *routing.RouteGroup) {
		api.Group("/invoice", func(inv *routing.RouteGroup) {
			inv.HandleFunc("GET ", s.getInvoice)
			inv.HandleFunc("PATCH ", s.patchInvoice)
			inv.HandleFunc("PATCH /sender", s.patchSender)
			inv.HandleFunc("PATCH /client", s.patchClient)
			inv.HandleFunc("POST /items", s.addItem)
			inv.HandleFunc("PATCH /items/{index}", s.patchItem)
			inv.HandleFunc("DELETE /items/{index}", s.removeItem)
			inv.HandleFunc("POST /reset", s.reset)
		})
		api.HandleFunc("POST /export", s.postExport)
		api.HandleFunc("GET /export/status", s.exportStatus)
	}, routing.Recover, withSession)

	r.Group("", func(root *routing.RouteGroup) {
		root.HandleFunc("GET /preview", s.getPreview, withSession)
		root.HandleFunc("GET /downloads/{token}", s.getDownload)
		root.HandleFunc("GET /api/currencies", s.getCurrencies)
		root.HandleFunc("DELETE /api/session", s.endSession)
	}, routing.Recover)

	if s.MetricsRegistry != nil {
		r.Handle("GET /metrics", metrics.Handler(s.MetricsRegistry))
	}
	log := logging.Component("api")
	for _, p := range r.Patterns() {
		log.Debug("route", "pattern", p)
	}
	return r
}

// session resolves the editor session of the request's web session.
func (s *Server) session(r *http.Request) (*editor.Session, error) {
	id, ok := session.IDFromContext(r.Context())
	if !ok {
		return nil, errNoSession
	}
	return s.Sessions.Get(r.Context(), id)
}

// Exporter returns the pipeline of session id. Each session exports independently.
func (s *Server) Exporter(id string) *export.Exporter {
	if e, ok := s.exporters.Load(id); ok {
		return e.(*export.Exporter)
	}
	e, _ := s.exporters.LoadOrStore(id, export.New(
		s.Rasterizer,
		s.Assembler,
		&delivery.Deliverer{Store: s.Transients},
		s.Options,
		s.Exports,
	))
	return e.(*export.Exporter)
}

// endSession forgets the browser's web session and its open invoice session.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.WebSession.End(w, r)
	if id != "" {
		s.Sessions.Close(id)
		s.exporters.Delete(id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportTo runs a full export of session id into sink.
func (s *Server) ExportTo(ctx context.Context, id string, sink delivery.Sink) error {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	snap := sess.Snapshot()
	surface, err := s.Renderer.Render(snap)
	if err != nil {
		return err
	}
	return s.Exporter(id).Export(ctx, surface, delivery.FileName(snap.InvoiceNumber), sink)
}
