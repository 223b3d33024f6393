package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// wireItem is the stored shape of a line, shared with the menu pages:
//
//	{"name":"Tacacá","price":25,"qty":1,"image":"/Img/Tacaca.jpg","note":""}
type wireItem struct {
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Qty   int         `json:"qty"`
	Image string      `json:"image"`
	Note  string      `json:"note"`
}

// looseItem accepts older entries: string prices, missing or fractional
// quantities and the order page's "img" field.
type looseItem struct {
	Name  string `json:"name"`
	Price any    `json:"price"`
	Qty   any    `json:"qty"`
	Image string `json:"image"`
	Img   string `json:"img"`
	Note  string `json:"note"`
}

// Encode serializes c into its stored JSON form. An empty cart encodes as [].
func Encode(c Cart) ([]byte, error) {
	items := make([]wireItem, 0, len(c))
	for _, li := range c {
		items = append(items, wireItem{
			Name:  li.Name,
			Price: json.Number(li.Price.String()),
			Qty:   li.Quantity,
			Image: li.Image,
			Note:  li.Note,
		})
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

// Decode parses a stored cart. Blank input and JSON null decode to an empty
// cart. Nameless entries are dropped and duplicate lines merged, so the result
// always satisfies the cart invariants.
func Decode(data []byte) (Cart, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Cart{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []looseItem
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	c := make(Cart, 0, len(items))
	for _, it := range items {
		image := it.Image
		if image == "" {
			image = it.Img
		}
		li, err := NewLineItem(it.Name, it.Price, image, it.Note)
		if err != nil {
			continue
		}
		li.Quantity = decodeQuantity(it.Qty)
		c = AddOrIncrement(c, li)
	}
	return c, nil
}

// decodeQuantity reads a stored qty as an integer clamped to
// [1, MaxQuantity]. Fractions are truncated; anything that is not a number,
// "2,5" included, counts as 1.
func decodeQuantity(v any) int {
	var n json.Number
	switch q := v.(type) {
	case json.Number:
		n = q
	case string:
		n = json.Number(strings.TrimSpace(q))
	case float64:
		return clampFloatQuantity(q)
	default:
		return 1
	}
	if i, err := n.Int64(); err == nil {
		return int(max(1, min(i, MaxQuantity)))
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 1
	}
	return clampFloatQuantity(f)
}

func clampFloatQuantity(f float64) int {
	switch {
	case math.IsNaN(f) || f < 1:
		return 1
	case f >= MaxQuantity:
		return MaxQuantity
	}
	return int(f)
}
