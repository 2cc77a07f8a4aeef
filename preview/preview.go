// Package preview renders an invoice into the HTML surface that capture rasterizes.
package preview

import (
	"embed"
	"html/template"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/invoice"
)

const (
	Selector = "#invoice"
	Width    = 800 // CSS px

	invoiceTemplate = "invoice"
)

//go:embed templates
var templatesFS embed.FS

var funcs = template.FuncMap{
	"money": invoice.FormatAmount,
	"neg":   func(d decimal.Decimal) decimal.Decimal { return d.Neg() },
	"or": func(s, fallback string) string {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	},
	"positive": func(d decimal.Decimal) bool { return d.IsPositive() },
	"imgsrc":   imgSrc,
}

// filteredURL is what html/template substitutes for a URL it refuses.
const filteredURL = "#ZgotmplZ"

// imgSrc admits data:image/ URIs, which html/template would otherwise reject, next to
// http(s) and relative references. Every other scheme is filtered.
func imgSrc(s string) template.URL {
	if src, ok := imageSource(s); ok {
		return template.URL(src)
	}
	return filteredURL
}

func imageSource(s string) (string, bool) {
	src := strings.TrimSpace(s)
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "data:image/") {
		return src, true
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "":
		return src, src != ""
	}
	return "", false
}

type Renderer struct {
	BaseURL string
	store   *TemplateStore
}

func NewRenderer(baseURL string) (*Renderer, error) {
	store := NewTemplateStore(funcs)
	if err := store.Load(templatesFS, "templates"); err != nil {
		return nil, err
	}
	return &Renderer{BaseURL: baseURL, store: store}, nil
}

type view struct {
	*invoice.Invoice
	BaseURL string
}

// Render produces the surface for inv. The invoice is only read.
func (r *Renderer) Render(inv *invoice.Invoice) (capture.Surface, error) {
	t, err := r.store.Lookup(invoiceTemplate)
	if err != nil {
		return capture.Surface{}, err
	}
	var b strings.Builder
	if err := t.Execute(&b, view{Invoice: inv, BaseURL: r.BaseURL}); err != nil {
		return capture.Surface{}, err
	}
	s := capture.Surface{
		HTML:     b.String(),
		BaseURL:  r.BaseURL,
		Selector: Selector,
		Width:    Width,
	}
	if src, ok := imageSource(inv.Sender.Logo); ok {
		s.Assets = []string{src}
	}
	return s, nil
}
