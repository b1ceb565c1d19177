package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"agrogestion/internal/core"
	"agrogestion/internal/store"
)

func cell(row []any, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func formatRow(e core.Expense) []any {
	r := store.ToRow(e)
	return []any{
		r.ID, r.UserID, r.Date, r.Description, r.InvoiceNumber,
		r.Amount.StringFixed(2), r.Category, r.Month, r.Year,
	}
}

// parseRow reads one data row. The header, blank rows and rows that do not
// form a valid expense are skipped.
func parseRow(row []any) (core.Expense, bool) {
	if len(row) < 9 {
		return core.Expense{}, false
	}
	amount, ok := parseAmount(cell(row, 5))
	if !ok {
		return core.Expense{}, false
	}
	month, err := strconv.Atoi(cell(row, 7))
	if err != nil {
		return core.Expense{}, false
	}
	year, err := strconv.Atoi(cell(row, 8))
	if err != nil {
		return core.Expense{}, false
	}
	e := store.FromRow(store.Row{
		ID:            cell(row, 0),
		UserID:        cell(row, 1),
		Date:          cell(row, 2),
		Description:   cell(row, 3),
		InvoiceNumber: cell(row, 4),
		Amount:        amount,
		Category:      cell(row, 6),
		Month:         month,
		Year:          year,
	})
	if e.Validate() != nil {
		return core.Expense{}, false
	}
	return e, true
}

// parseAmount accepts "1234.5", "1234,50" and numbers the API returns unformatted.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
