// Package render turns a cart into what a view displays and keeps attached
// views in step with the store.
package render

import (
	"github.com/fyrsmithlabs/menucart/internal/cart"
	"github.com/fyrsmithlabs/menucart/internal/price"
)

// LineView is one cart line ready for display. Amounts are pre-formatted
// with two decimals.
type LineView struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"qty"`
	Subtotal string `json:"subtotal"`
	Image    string `json:"image,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Projection is the display form of a cart.
type Projection struct {
	Items     []LineView `json:"items"`
	Total     string     `json:"total"`
	ItemCount int        `json:"count"`
	Empty     bool       `json:"empty"`
}

// Project builds the projection of c.
func Project(c cart.Cart) Projection {
	p := Projection{
		Items:     make([]LineView, 0, len(c)),
		Total:     price.Format(cart.Total(c)),
		ItemCount: cart.ItemCount(c),
		Empty:     c.Empty(),
	}
	for i, li := range c {
		p.Items = append(p.Items, LineView{
			Index:    i,
			Name:     li.Name,
			Price:    price.Format(li.Price),
			Quantity: li.Quantity,
			Subtotal: price.Format(li.Subtotal()),
			Image:    li.Image,
			Note:     li.Note,
		})
	}
	return p
}
