package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/menucart/internal/price"
	"github.com/fyrsmithlabs/menucart/internal/render"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	totalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

func currency(amount string) string {
	return price.CurrencySymbol + " " + amount
}

// formatCart renders the listing as a table followed by the totals line.
func formatCart(p render.Projection) string {
	if p.Empty {
		return dimStyle.Render(render.EmptyListingMessage)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Item", "Preço", "Qtd", "Subtotal").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, line := range p.Items {
		name := line.Name
		if line.Note != "" {
			name += "\n" + dimStyle.Render(line.Note)
		}
		t.Row(strconv.Itoa(line.Index), name, currency(line.Price), strconv.Itoa(line.Quantity), currency(line.Subtotal))
	}

	return lipgloss.JoinVertical(lipgloss.Left, t.String(), formatSummary(p))
}

// formatSummary is the one-line badge and total.
func formatSummary(p render.Projection) string {
	noun := "itens"
	if p.ItemCount == 1 {
		noun = "item"
	}
	return fmt.Sprintf("%d %s  %s", p.ItemCount, noun, totalStyle.Render("Total: "+currency(p.Total)))
}

// formatReceipt boxes the checkout message.
func formatReceipt(r CheckoutResponse) string {
	var b strings.Builder
	b.WriteString(totalStyle.Render(r.Message))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Pedido " + r.ID))
	return containerStyle.Render(b.String())
}
