package store

import (
	"time"

	"github.com/shopspring/decimal"

	"agrogestion/internal/core"
)

// Row is an expense as backends store it, with backend column names.
type Row struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Description   string          `json:"description" db:"description"`
	InvoiceNumber string          `json:"invoice_number" db:"invoice_number"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Category      string          `json:"category" db:"category"`
	Date          string          `json:"date" db:"date"`
	Month         int             `json:"month" db:"month"`
	Year          int             `json:"year" db:"year"`
	CreatedAt     time.Time       `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty" db:"updated_at"`
}

// Columns lists the record columns in the order every SQL backend uses.
var Columns = []string{
	"id", "user_id", "description", "invoice_number", "amount",
	"category", "date", "month", "year",
}

// ToRow maps a record to backend columns. Timestamps are owned by the backend.
func ToRow(e core.Expense) Row {
	return Row{
		ID:            e.ID,
		UserID:        e.UserID,
		Description:   e.Description,
		InvoiceNumber: e.InvoiceNumber,
		Amount:        e.Amount.Decimal(),
		Category:      string(e.Category),
		Date:          e.Date,
		Month:         e.Month,
		Year:          e.Year,
	}
}

// FromRow is the inverse of ToRow.
func FromRow(r Row) core.Expense {
	return core.Expense{
		ID:            r.ID,
		UserID:        r.UserID,
		Description:   r.Description,
		InvoiceNumber: r.InvoiceNumber,
		Amount:        core.MoneyFromDecimal(r.Amount),
		Category:      core.Category(r.Category),
		Date:          r.Date,
		Month:         r.Month,
		Year:          r.Year,
	}
}
