package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/export"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/requests"
	"github.com/zeptools/invoicer/responses"
	"github.com/zeptools/invoicer/rw"
	"github.com/zeptools/invoicer/web/session"
)

type linkResponse struct {
	URL string `json:"url"`
}

type statusResponse struct {
	Generating bool         `json:"generating"`
	Stage      export.Stage `json:"stage"`
}

// postExport renders the session invoice and runs the pipeline. The PDF is the response
// body unless ?delivery=link asks for a signed download link.
func (s *Server) postExport(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IDFromContext(r.Context())
	if !ok {
		writeError(w, r, errNoSession)
		return
	}
	if s.Throttle != nil {
		if ok, wait := s.Throttle.Take(ThrottleGroup, requests.GetClientIP(r), s.now()); !ok {
			if wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			writeError(w, r, errThrottled)
			return
		}
	}
	release, ok := s.locks.TryLock("export:" + id)
	if !ok {
		writeError(w, r, export.ErrBusy)
		return
	}
	defer release()

	if r.URL.Query().Get("delivery") == "link" {
		base := s.BaseURL
		if base == "" {
			base = requests.Origin(r)
		}
		sink := &delivery.LinkSink{Downloads: s.Downloads, Signer: s.Signer, TTL: s.LinkTTL, BaseURL: base}
		if err := s.ExportTo(r.Context(), id, sink); err != nil {
			writeError(w, r, err)
			return
		}
		responses.EncodeWriteJSON(w, http.StatusCreated, linkResponse{URL: sink.URL})
		return
	}

	tw := &rw.ResponseTracker{ResponseWriter: w}
	if err := s.ExportTo(r.Context(), id, &delivery.ResponseSink{W: tw}); err != nil {
		if tw.Committed() {
			// body already streaming; nothing sane left to tell the client
			logging.Component("api").Warn("export failed after response started", "err", err, "written", tw.Written)
			return
		}
		writeError(w, r, err)
	}
}

func (s *Server) exportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IDFromContext(r.Context())
	if !ok {
		writeError(w, r, errNoSession)
		return
	}
	e := s.Exporter(id)
	responses.EncodeWriteJSON(w, http.StatusOK, statusResponse{Generating: e.Busy(), Stage: e.Stage()})
}

// getDownload serves a linked artifact once.
func (s *Server) getDownload(w http.ResponseWriter, r *http.Request) {
	blob, err := delivery.Redeem(r.Context(), s.Downloads, s.Signer, r.PathValue("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = responses.WritePDFBytesWithFilename(w, blob.Name, blob.Data)
}
