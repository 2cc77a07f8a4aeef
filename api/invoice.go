package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/zeptools/invoicer/editor"
	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/requests"
	"github.com/zeptools/invoicer/responses"
)

const maxBodyBytes = 1 << 20

// fieldPatch is the body of every PATCH route. Field uses the persisted JSON names.
type fieldPatch struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func decodePatch(w http.ResponseWriter, r *http.Request) (fieldPatch, error) {
	var p fieldPatch
	if !requests.HasBody(r) {
		return p, badRequest(errors.New("body required"))
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return p, badRequest(fmt.Errorf("invalid body: %w", err))
	}
	if p.Field == "" {
		return p, badRequest(errors.New("field is required"))
	}
	return p, nil
}

func itemIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, badRequest(fmt.Errorf("invalid item index %q", r.PathValue("index")))
	}
	return i, nil
}

// mutation resolves the session, runs fn and answers with the resulting snapshot.
func (s *Server) mutation(w http.ResponseWriter, r *http.Request, status int, fn func(sess *editor.Session) error) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err = fn(sess); err != nil {
		writeError(w, r, err)
		return
	}
	responses.EncodeWriteJSON(w, status, sess.Snapshot())
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusOK, func(*editor.Session) error { return nil })
}

func (s *Server) patchInvoice(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusOK, func(sess *editor.Session) error {
		p, err := decodePatch(w, r)
		if err != nil {
			return err
		}
		u, err := invoice.ParseInvoiceUpdate(p.Field, p.Value)
		if err != nil {
			return err
		}
		return sess.SetField(r.Context(), u)
	})
}

func (s *Server) patchSender(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusOK, func(sess *editor.Session) error {
		p, err := decodePatch(w, r)
		if err != nil {
			return err
		}
		u, err := invoice.ParseSenderUpdate(p.Field, p.Value)
		if err != nil {
			return err
		}
		return sess.SetSenderField(r.Context(), u)
	})
}

func (s *Server) patchClient(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusOK, func(sess *editor.Session) error {
		p, err := decodePatch(w, r)
		if err != nil {
			return err
		}
		u, err := invoice.ParsePartyUpdate(p.Field, p.Value)
		if err != nil {
			return err
		}
		return sess.SetClientField(r.Context(), u)
	})
}

func (s *Server) patchItem(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusOK, func(sess *editor.Session) error {
		index, err := itemIndex(r)
		if err != nil {
			return err
		}
		p, err := decodePatch(w, r)
		if err != nil {
			return err
		}
		u, err := invoice.ParseItemUpdate(p.Field, p.Value)
		if err != nil {
			return err
		}
		return sess.SetItemField(r.Context(), index, u)
	})
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusCreated, func(sess *editor.Session) error {
		_, err := sess.AddItem(r.Context())
		return err
	})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusOK, func(sess *editor.Session) error {
		index, err := itemIndex(r)
		if err != nil {
			return err
		}
		return sess.RemoveItem(r.Context(), index)
	})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.mutation(w, r, http.StatusOK, func(sess *editor.Session) error {
		return sess.Reset(r.Context())
	})
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	surface, err := s.Renderer.Render(sess.Snapshot())
	if err != nil {
		writeError(w, r, err)
		return
	}
	responses.WriteHTML(w, http.StatusOK, surface.HTML)
}

type currencyOption struct {
	Code   invoice.Currency `json:"code"`
	Symbol string           `json:"symbol"`
	Label  string           `json:"label"`
}

// getCurrencies lists the selectable currencies for the form.
func (s *Server) getCurrencies(w http.ResponseWriter, _ *http.Request) {
	cs := invoice.Currencies()
	out := make([]currencyOption, 0, len(cs))
	for _, c := range cs {
		out = append(out, currencyOption{Code: c, Symbol: c.Symbol(), Label: c.Label()})
	}
	responses.EncodeWriteJSON(w, http.StatusOK, out)
}
