package cart

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(t *testing.T, name string, p any) LineItem {
	t.Helper()
	li, err := NewLineItem(name, p, "", "")
	require.NoError(t, err)
	return li
}

func TestNewLineItem(t *testing.T) {
	t.Run("parses price and defaults quantity", func(t *testing.T) {
		li, err := NewLineItem("Tacacá", "R$ 25,00", "/Img/Tacaca.jpg", "sem pimenta")
		require.NoError(t, err)
		assert.Equal(t, "Tacacá", li.Name)
		assert.True(t, li.Price.Equal(decimal.NewFromInt(25)))
		assert.Equal(t, 1, li.Quantity)
		assert.Equal(t, "/Img/Tacaca.jpg", li.Image)
		assert.Equal(t, "sem pimenta", li.Note)
	})

	t.Run("rejects blank name", func(t *testing.T) {
		_, err := NewLineItem("   ", 10, "", "")
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("unparseable price becomes zero", func(t *testing.T) {
		li, err := NewLineItem("Água", "abc", "", "")
		require.NoError(t, err)
		assert.True(t, li.Price.IsZero())
	})
}

func TestAddOrIncrement(t *testing.T) {
	t.Run("same item twice merges into one line", func(t *testing.T) {
		tacaca := item(t, "Tacacá", 25.00)
		c := AddOrIncrement(Cart{}, tacaca)
		c = AddOrIncrement(c, tacaca)

		require.Len(t, c, 1)
		assert.Equal(t, 2, c[0].Quantity)
		assert.Equal(t, "50.00", Total(c).StringFixed(2))
	})

	t.Run("same name different price stays separate", func(t *testing.T) {
		c := AddOrIncrement(Cart{}, item(t, "Açaí", 15))
		c = AddOrIncrement(c, item(t, "Açaí", 20))
		assert.Len(t, c, 2)
	})

	t.Run("prices compare by value", func(t *testing.T) {
		c := AddOrIncrement(Cart{}, item(t, "Vatapá", "30.00"))
		c = AddOrIncrement(c, item(t, "Vatapá", 30))
		require.Len(t, c, 1)
		assert.Equal(t, 2, c[0].Quantity)
	})

	t.Run("increments by incoming quantity", func(t *testing.T) {
		c := AddOrIncrement(Cart{}, item(t, "Pato no tucupi", 60))
		li := item(t, "Pato no tucupi", 60)
		li.Quantity = 3
		c = AddOrIncrement(c, li)
		assert.Equal(t, 4, c[0].Quantity)
	})

	t.Run("new lines append in order", func(t *testing.T) {
		c := AddOrIncrement(Cart{}, item(t, "A", 1))
		c = AddOrIncrement(c, item(t, "B", 2))
		c = AddOrIncrement(c, item(t, "A", 1))
		c = AddOrIncrement(c, item(t, "C", 3))
		names := []string{c[0].Name, c[1].Name, c[2].Name}
		assert.Equal(t, []string{"A", "B", "C"}, names)
	})

	t.Run("zero quantity defaults to one", func(t *testing.T) {
		li := item(t, "Maniçoba", 40)
		li.Quantity = 0
		c := AddOrIncrement(nil, li)
		assert.Equal(t, 1, c[0].Quantity)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		orig := AddOrIncrement(Cart{}, item(t, "A", 1))
		_ = AddOrIncrement(orig, item(t, "A", 1))
		assert.Equal(t, 1, orig[0].Quantity)
	})
}

func TestAddOrIncrement_NoDuplicateLines(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"Tacacá", "Açaí", "Vatapá", "Maniçoba"}
	prices := []int64{10, 25, 40}

	c := Cart{}
	want := map[string]int{}
	for i := 0; i < 500; i++ {
		li := item(t, names[rng.Intn(len(names))], prices[rng.Intn(len(prices))])
		li.Quantity = rng.Intn(3) + 1
		want[fmt.Sprintf("%s|%s", li.Name, li.Price)] += li.Quantity
		c = AddOrIncrement(c, li)
	}

	seen := map[string]bool{}
	for _, li := range c {
		key := fmt.Sprintf("%s|%s", li.Name, li.Price)
		assert.False(t, seen[key], "duplicate line %s", key)
		seen[key] = true
		assert.Equal(t, want[key], li.Quantity, "quantity for %s", key)
	}
	assert.Len(t, c, len(want))
}

func TestTotal_IndependentOfOrder(t *testing.T) {
	items := []LineItem{
		item(t, "A", "12.50"),
		item(t, "B", "7.25"),
		item(t, "A", "12.50"),
		item(t, "C", "0.10"),
		item(t, "B", "7.25"),
	}

	forward := Cart{}
	for _, li := range items {
		forward = AddOrIncrement(forward, li)
	}
	backward := Cart{}
	for i := len(items) - 1; i >= 0; i-- {
		backward = AddOrIncrement(backward, items[i])
	}

	assert.True(t, Total(forward).Equal(Total(backward)))
	assert.Equal(t, "39.60", Total(forward).StringFixed(2))
	assert.Equal(t, 5, ItemCount(forward))
}

func TestChangeQuantity(t *testing.T) {
	base := AddOrIncrement(Cart{}, item(t, "Tacacá", 25))

	t.Run("increment", func(t *testing.T) {
		c := ChangeQuantity(base, 0, 1)
		assert.Equal(t, 2, c[0].Quantity)
	})

	t.Run("decrement floors at one", func(t *testing.T) {
		c := ChangeQuantity(base, 0, -1)
		c = ChangeQuantity(c, 0, -1)
		require.Len(t, c, 1)
		assert.Equal(t, 1, c[0].Quantity)
	})

	t.Run("large negative delta floors at one", func(t *testing.T) {
		c := ChangeQuantity(ChangeQuantity(base, 0, 5), 0, -100)
		assert.Equal(t, 1, c[0].Quantity)
	})

	t.Run("out of range is a no-op", func(t *testing.T) {
		assert.Equal(t, base, ChangeQuantity(base, 3, 1))
		assert.Equal(t, base, ChangeQuantity(base, -1, 1))
	})

	t.Run("huge deltas saturate", func(t *testing.T) {
		c := ChangeQuantity(ChangeQuantity(base, 0, 4), 0, math.MaxInt)
		assert.Equal(t, MaxQuantity, c[0].Quantity)
		c = ChangeQuantity(c, 0, math.MinInt)
		assert.Equal(t, 1, c[0].Quantity)
	})
}

func TestAddOrIncrement_Saturates(t *testing.T) {
	huge := item(t, "Tacacá", 25)
	huge.Quantity = math.MaxInt

	c := AddOrIncrement(Cart{}, huge)
	assert.Equal(t, MaxQuantity, c[0].Quantity)

	c = AddOrIncrement(c, item(t, "Tacacá", 25))
	c = AddOrIncrement(c, huge)
	require.Len(t, c, 1)
	assert.Equal(t, MaxQuantity, c[0].Quantity)
	assert.Equal(t, MaxQuantity, ItemCount(c))
	assert.Equal(t, "249975.00", Total(c).StringFixed(2))
}

func TestClampQuantity(t *testing.T) {
	for in, want := range map[int]int{
		math.MinInt: 1, -3: 1, 0: 1, 1: 1, 42: 42,
		MaxQuantity: MaxQuantity, MaxQuantity + 1: MaxQuantity, math.MaxInt: MaxQuantity,
	} {
		assert.Equal(t, want, ClampQuantity(in), "ClampQuantity(%d)", in)
	}
}

func TestRemoveAt(t *testing.T) {
	c := AddOrIncrement(Cart{}, item(t, "A", 1))
	c = AddOrIncrement(c, item(t, "B", 2))
	c = AddOrIncrement(c, item(t, "C", 3))

	t.Run("removes middle line", func(t *testing.T) {
		out := RemoveAt(c, 1)
		require.Len(t, out, 2)
		assert.Equal(t, "A", out[0].Name)
		assert.Equal(t, "C", out[1].Name)
		assert.Len(t, c, 3, "input must be untouched")
	})

	t.Run("out of range is a no-op", func(t *testing.T) {
		assert.Equal(t, c, RemoveAt(c, 7))
		assert.Equal(t, c, RemoveAt(c, -1))
	})

	t.Run("removing last line empties the cart", func(t *testing.T) {
		one := AddOrIncrement(Cart{}, item(t, "A", 1))
		assert.True(t, RemoveAt(one, 0).Empty())
	})
}

func TestTotalsOfEmptyCart(t *testing.T) {
	assert.True(t, Total(nil).IsZero())
	assert.Equal(t, 0, ItemCount(nil))
}
