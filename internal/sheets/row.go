package sheets

import (
	"strings"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

// Header is the first row of every export sheet.
var Header = []string{
	"ID", "Date", "Kind", "Amount", "Currency", "Rate", "Base amount",
	"Category", "Payment method", "Tags", "Status", "Description",
}

// Row is the flat, string-typed export of a transaction. Amounts keep their
// exact decimal representation.
type Row struct {
	ID            string
	Date          string
	Kind          string
	Amount        string
	Currency      string
	Rate          string
	BaseAmount    string
	Category      string
	PaymentMethod string
	Tags          string
	Status        string
	Description   string
}

// NewRow flattens tx. BaseAmount is left empty when no rate was captured.
func NewRow(tx core.Transaction) Row {
	r := Row{
		ID:            tx.ID,
		Date:          tx.Date.String(),
		Kind:          string(tx.Kind),
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency.String(),
		Category:      tx.CategoryName,
		PaymentMethod: string(tx.PaymentMethod),
		Tags:          strings.Join(tx.Tags, ", "),
		Status:        string(tx.Status),
		Description:   tx.Description,
	}
	if base, ok := tx.BaseAmount(); ok {
		r.Rate = tx.ExchangeRate.String()
		r.BaseAmount = core.RoundHalfUp(base, core.UZS.MinorUnits()).String()
	}
	return r
}

// Values returns the cells in Header order.
func (r Row) Values() []any {
	return []any{
		r.ID, r.Date, r.Kind, r.Amount, r.Currency, r.Rate, r.BaseAmount,
		r.Category, r.PaymentMethod, r.Tags, r.Status, r.Description,
	}
}

// ParseRow reads cells back into a Row. Header rows, rows without an ID and
// rows whose amount is not a decimal are rejected.
func ParseRow(cells []string) (Row, bool) {
	get := func(i int) string {
		if i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}
	r := Row{
		ID:            get(0),
		Date:          get(1),
		Kind:          get(2),
		Amount:        get(3),
		Currency:      get(4),
		Rate:          get(5),
		BaseAmount:    get(6),
		Category:      get(7),
		PaymentMethod: get(8),
		Tags:          get(9),
		Status:        get(10),
		Description:   get(11),
	}
	if r.ID == "" || r.ID == Header[0] {
		return Row{}, false
	}
	if _, err := decimal.NewFromString(strings.ReplaceAll(r.Amount, ",", ".")); err != nil {
		return Row{}, false
	}
	return r, true
}
