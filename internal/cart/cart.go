// Package cart holds the in-memory cart model.
//
// A Cart is an ordered list of line items. Two items are the same line when
// their name and price are equal; adding a duplicate bumps the quantity of the
// existing line instead of appending. Every operation returns a new Cart and
// leaves its input untouched, so callers decide when to persist.
package cart

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/menucart/internal/price"
)

// ErrEmptyName is returned when a line item has no name.
var ErrEmptyName = errors.New("item name is required")

// MaxQuantity caps the quantity of a single line. Merges and quantity
// changes saturate here instead of overflowing.
const MaxQuantity = 9999

// ClampQuantity bounds n to [1, MaxQuantity].
func ClampQuantity(n int) int {
	return max(1, min(n, MaxQuantity))
}

// addQuantity returns q+delta within [1, MaxQuantity] for q already in range.
// The bounds are compared before adding so huge deltas cannot wrap.
func addQuantity(q, delta int) int {
	q = ClampQuantity(q)
	switch {
	case delta > MaxQuantity-q:
		return MaxQuantity
	case delta < 1-q:
		return 1
	}
	return q + delta
}

// LineItem is one distinct (name, price) entry in the cart.
type LineItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
	Image    string
	Note     string
}

// NewLineItem builds a single-quantity item, normalizing rawPrice with the
// price parser.
func NewLineItem(name string, rawPrice any, image, note string) (LineItem, error) {
	if strings.TrimSpace(name) == "" {
		return LineItem{}, ErrEmptyName
	}
	return LineItem{
		Name:     name,
		Price:    price.Parse(rawPrice),
		Quantity: 1,
		Image:    image,
		Note:     note,
	}, nil
}

// SameLine reports whether li and other merge into one line.
func (li LineItem) SameLine(other LineItem) bool {
	return li.Name == other.Name && li.Price.Equal(other.Price)
}

// Subtotal is price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is an ordered sequence of line items with no duplicate identities.
type Cart []LineItem

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c) == 0
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// AddOrIncrement merges item into c. A line with the same name and price has
// its quantity raised by item's quantity; otherwise item is appended. The
// quantity added is clamped to [1, MaxQuantity] and the merged line
// saturates at MaxQuantity.
func AddOrIncrement(c Cart, item LineItem) Cart {
	qty := ClampQuantity(item.Quantity)
	out := c.clone()
	for i := range out {
		if out[i].SameLine(item) {
			out[i].Quantity = addQuantity(out[i].Quantity, qty)
			return out
		}
	}
	item.Quantity = qty
	return append(out, item)
}

// ChangeQuantity adds delta to the quantity at index, flooring at 1 and
// capping at MaxQuantity. The floor never removes the line. Out-of-range
// indexes return an unchanged copy.
func ChangeQuantity(c Cart, index, delta int) Cart {
	out := c.clone()
	if index < 0 || index >= len(out) {
		return out
	}
	out[index].Quantity = addQuantity(out[index].Quantity, delta)
	return out
}

// RemoveAt deletes the line at index. Out-of-range indexes return an
// unchanged copy.
func RemoveAt(c Cart, index int) Cart {
	if index < 0 || index >= len(c) {
		return c.clone()
	}
	out := make(Cart, 0, len(c)-1)
	out = append(out, c[:index]...)
	return append(out, c[index+1:]...)
}

// Total sums price times quantity over every line.
func Total(c Cart) decimal.Decimal {
	total := decimal.Zero
	for _, li := range c {
		total = total.Add(li.Subtotal())
	}
	return total
}

// ItemCount sums quantities over every line.
func ItemCount(c Cart) int {
	n := 0
	for _, li := range c {
		n += li.Quantity
	}
	return n
}
