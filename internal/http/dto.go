package http

import (
	"fmt"
	"time"

	"agrogestion/internal/core"
)

// Amounts travel as decimal strings with two places, e.g. "123.45".

type expenseJSON struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	Amount        string `json:"amount"`
	AmountCents   int64  `json:"amountCents"`
	Category      string `json:"category"`
	Date          string `json:"date"`
	Month         int    `json:"month"`
	Year          int    `json:"year"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:            e.ID,
		Description:   e.Description,
		InvoiceNumber: e.InvoiceNumber,
		Amount:        e.Amount.String(),
		AmountCents:   e.Amount.Cents,
		Category:      string(e.Category),
		Date:          e.Date,
		Month:         e.Month,
		Year:          e.Year,
	}
}

func toExpenseList(expenses []core.Expense) []expenseJSON {
	out := make([]expenseJSON, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseJSON(e)
	}
	return out
}

// expenseInput is the body of create and update. Updates replace every field.
type expenseInput struct {
	Description   string `json:"description"`
	InvoiceNumber string `json:"invoiceNumber"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	// Date defaults to today when empty.
	Date string `json:"date"`
}

func (in expenseInput) build(ownerID string, today time.Time) (core.Expense, error) {
	cents, err := core.ParseDecimalToCents(in.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("amount: %w", err)
	}
	cat, err := core.ParseCategory(sanitizeInput(in.Category))
	if err != nil {
		return core.Expense{}, err
	}
	at := today
	if d := sanitizeInput(in.Date); d != "" {
		at, err = time.Parse(core.DateLayout, d)
		if err != nil {
			return core.Expense{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, d)
		}
	}
	e := core.NewExpense(ownerID, sanitizeInput(in.Description), sanitizeInput(in.InvoiceNumber),
		core.Money{Cents: cents}, cat, at)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

type expenseListJSON struct {
	Expenses []expenseJSON `json:"expenses"`
	Count    int           `json:"count"`
	Total    string        `json:"total"`
}

type monthJSON struct {
	Month int    `json:"month"`
	Name  string `json:"name"`
	Total string `json:"total"`
}

func toMonthJSON(m core.MonthTotal) monthJSON {
	return monthJSON{Month: m.Month, Name: core.MonthName(m.Month), Total: m.Total.String()}
}

func toMonths(ms [12]core.MonthTotal) []monthJSON {
	out := make([]monthJSON, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMonthJSON(m))
	}
	return out
}

type categoryJSON struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

type annualJSON struct {
	Year           int            `json:"year"`
	Total          string         `json:"total"`
	PriorTotal     string         `json:"priorTotal"`
	ChangePercent  float64        `json:"changePercent"`
	MonthlyAverage string         `json:"monthlyAverage"`
	Months         []monthJSON    `json:"months"`
	PriorMonths    []monthJSON    `json:"priorMonths"`
	ByCategory     []categoryJSON `json:"byCategory"`
	Busiest        monthJSON      `json:"busiestMonth"`
}

func toAnnualJSON(a core.Annual) annualJSON {
	cats := make([]categoryJSON, 0, len(a.ByCategory))
	for _, c := range a.ByCategory {
		cats = append(cats, categoryJSON{Category: string(c.Category), Total: c.Amount.String()})
	}
	return annualJSON{
		Year:           a.Year,
		Total:          a.Total.String(),
		PriorTotal:     a.PriorTotal.String(),
		ChangePercent:  a.ChangePercent,
		MonthlyAverage: a.MonthlyAverage.String(),
		Months:         toMonths(a.Months),
		PriorMonths:    toMonths(a.PriorMonths),
		ByCategory:     cats,
		Busiest:        toMonthJSON(a.Busiest),
	}
}

type overviewJSON struct {
	Year          int           `json:"year"`
	Month         int           `json:"month"`
	MonthName     string        `json:"monthName"`
	Total         string        `json:"total"`
	PreviousTotal string        `json:"previousTotal"`
	ChangePercent float64       `json:"changePercent"`
	YearTotal     string        `json:"yearTotal"`
	TopCategory   *categoryJSON `json:"topCategory,omitempty"`
	DailyAverage  string        `json:"dailyAverage"`
	Count         int           `json:"count"`
}

func toOverviewJSON(o core.MonthOverview) overviewJSON {
	out := overviewJSON{
		Year:          o.Year,
		Month:         o.Month,
		MonthName:     core.MonthName(o.Month),
		Total:         o.Total.String(),
		PreviousTotal: o.PreviousTotal.String(),
		ChangePercent: o.ChangePercent,
		YearTotal:     o.YearTotal.String(),
		DailyAverage:  o.DailyAverage.String(),
		Count:         o.Count,
	}
	if o.TopCategory != nil {
		out.TopCategory = &categoryJSON{Category: string(o.TopCategory.Category), Total: o.TopCategory.Amount.String()}
	}
	return out
}

type authResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}
