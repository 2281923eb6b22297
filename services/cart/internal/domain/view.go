package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// EmptySize is shown in place of a blank size.
const EmptySize = "-"

// Row is one line of the cart table.
type Row struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	Size         string  `json:"size"`
	Price        float64 `json:"price"`
	PriceText    string  `json:"price_text"`
	Quantity     int     `json:"quantity"`
	Subtotal     float64 `json:"subtotal"`
	SubtotalText string  `json:"subtotal_text"`
}

// View is the render data for the cart badge and the cart table.
type View struct {
	Items        []Row   `json:"items"`
	Count        int     `json:"count"`
	Total        float64 `json:"total"`
	TotalText    string  `json:"total_text"`
	Empty        bool    `json:"empty"`
	OrderDetails string  `json:"order_details"`
}

// FormatCurrency renders d as dollars with two decimals.
func FormatCurrency(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Cents rounds d to whole cents for JSON payloads.
func Cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// BuildView derives the table rows, totals and the plain-text order summary
// submitted with the order form.
func BuildView(items Items) View {
	total := items.Total()
	view := View{
		Items:     make([]Row, 0, len(items)),
		Count:     items.Count(),
		Total:     Cents(total),
		Empty:     len(items) == 0,
		TotalText: FormatCurrency(total),
	}
	if view.Empty {
		return view
	}

	var summary strings.Builder
	for _, item := range items {
		size := item.Size
		if size == "" {
			size = EmptySize
		}
		subtotal := item.Subtotal()
		row := Row{
			Key:          item.Key().Encode(),
			Name:         item.Name,
			Size:         size,
			Price:        item.Price,
			PriceText:    FormatCurrency(decimal.NewFromFloat(item.Price)),
			Quantity:     item.Quantity,
			Subtotal:     Cents(subtotal),
			SubtotalText: FormatCurrency(subtotal),
		}
		view.Items = append(view.Items, row)

		summary.WriteString(row.Name + " — " + row.Size + " — " + row.PriceText +
			" x " + strconv.Itoa(row.Quantity) + " => " + row.SubtotalText + "\n")
	}
	summary.WriteString("Total: " + view.TotalText)
	view.OrderDetails = summary.String()

	return view
}
