package render

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/fyrsmithlabs/menucart/internal/price"
)

// Surface is a view of the cart that can be redrawn from a projection.
type Surface interface {
	Name() string
	Render(p Projection) error
}

// EmptyListingMessage is shown by a listing with no lines.
const EmptyListingMessage = "Seu pedido está vazio."

var funcs = template.FuncMap{
	"currency": func(s string) string { return price.CurrencySymbol + " " + s },
}

var listingTmpl = template.Must(template.New("listing").Funcs(funcs).Parse(`
{{- if .P.Empty -}}
<p id="empty-message">{{.EmptyMessage}}</p>
{{- else -}}
<div id="carrinho">
{{- range .P.Items}}
<div class="cart-item">
{{- if .Image}}<img src="{{.Image}}" alt="{{.Name}}">{{end}}
<div class="cart-details"><h3>{{.Name}}</h3><div class="preco">{{currency .Price}}</div>
{{- if .Note}}<div class="descricao">{{.Note}}</div>{{end}}</div>
{{- if $.Controls}}
<div class="cart-controls"><div class="qty-controls">
<form method="post" action="{{$.ActionBase}}/{{.Index}}/decrement"><button data-action="dec" data-idx="{{.Index}}">-</button></form>
<div class="qty">{{.Quantity}}</div>
<form method="post" action="{{$.ActionBase}}/{{.Index}}/increment"><button data-action="inc" data-idx="{{.Index}}">+</button></form>
</div>
<form method="post" action="{{$.ActionBase}}/{{.Index}}/remove"><button class="remove-btn" data-action="remove" data-idx="{{.Index}}">Remover</button></form>
</div>
{{- else}}
<div class="qty">{{.Quantity}}</div>
{{- end}}
</div>
{{- end}}
</div>
<div class="resumo"><span id="resumo-itens">{{.P.ItemCount}}</span> <span id="total">{{currency .P.Total}}</span></div>
{{- end}}
`))

var layoutOpenTmpl = template.Must(template.New("open").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>{{.}}</title></head>
<body>
`))

const layoutClose = "\n</body>\n</html>\n"

// Badge writes the header item count.
type Badge struct {
	w io.Writer
}

// NewBadge returns a badge writing to w.
func NewBadge(w io.Writer) *Badge {
	return &Badge{w: w}
}

// Name implements Surface.
func (b *Badge) Name() string { return "badge" }

// Render implements Surface.
func (b *Badge) Render(p Projection) error {
	_, err := fmt.Fprintf(b.w, `<span id="item-count">%d</span>`, p.ItemCount)
	return err
}

// Listing writes the itemized cart. With controls each line carries
// decrement, increment and remove forms posting under ActionBase.
type Listing struct {
	w            io.Writer
	controls     bool
	actionBase   string
	emptyMessage string
}

// ListingOption configures a Listing.
type ListingOption func(*Listing)

// WithControls adds per-line quantity and remove controls posting to
// actionBase/<index>/<action>.
func WithControls(actionBase string) ListingOption {
	return func(l *Listing) {
		l.controls = true
		l.actionBase = actionBase
	}
}

// WithEmptyMessage replaces the empty-cart message.
func WithEmptyMessage(msg string) ListingOption {
	return func(l *Listing) { l.emptyMessage = msg }
}

// NewListing returns a listing writing to w.
func NewListing(w io.Writer, opts ...ListingOption) *Listing {
	l := &Listing{w: w, emptyMessage: EmptyListingMessage}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name implements Surface.
func (l *Listing) Name() string { return "listing" }

// Render implements Surface.
func (l *Listing) Render(p Projection) error {
	return listingTmpl.Execute(l.w, struct {
		P            Projection
		Controls     bool
		ActionBase   string
		EmptyMessage string
	}{p, l.controls, l.actionBase, l.emptyMessage})
}

// Page composes an optional badge and an optional listing. With a title it
// wraps them in an HTML document written to w. A nil part is skipped.
type Page struct {
	w       io.Writer
	title   string
	badge   Surface
	listing Surface
}

// NewPage returns a page. w may be nil when title is empty.
func NewPage(w io.Writer, title string, badge, listing Surface) *Page {
	return &Page{w: w, title: title, badge: badge, listing: listing}
}

// Name implements Surface.
func (p *Page) Name() string { return "page" }

// Render implements Surface.
func (p *Page) Render(proj Projection) error {
	framed := p.title != "" && p.w != nil
	if framed {
		if err := layoutOpenTmpl.Execute(p.w, p.title); err != nil {
			return err
		}
	}
	var errs []error
	for _, part := range []Surface{p.badge, p.listing} {
		if isNil(part) {
			continue
		}
		if err := part.Render(proj); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", part.Name(), err))
		}
	}
	if framed {
		if _, err := io.WriteString(p.w, layoutClose); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isNil catches typed nil pointers stored in a Surface.
func isNil(s Surface) bool {
	switch v := s.(type) {
	case nil:
		return true
	case *Badge:
		return v == nil
	case *Listing:
		return v == nil
	case *Page:
		return v == nil
	case *Stream:
		return v == nil
	}
	return false
}

// Stream hands projections to a consumer goroutine. When the consumer falls
// behind the oldest pending projection is dropped; only the latest matters.
type Stream struct {
	name string
	ch   chan Projection
	mu   sync.Mutex
}

// NewStream returns a stream buffering up to buffer projections.
func NewStream(name string, buffer int) *Stream {
	if buffer < 1 {
		buffer = 1
	}
	return &Stream{name: name, ch: make(chan Projection, buffer)}
}

// Name implements Surface.
func (s *Stream) Name() string { return s.name }

// Updates returns the channel of rendered projections.
func (s *Stream) Updates() <-chan Projection { return s.ch }

// Render implements Surface. It never blocks.
func (s *Stream) Render(p Projection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.ch <- p:
			return nil
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
