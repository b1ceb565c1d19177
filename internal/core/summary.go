package core

import (
	"sort"
	"strings"
	"time"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// MonthTotal is the sum of one calendar month.
type MonthTotal struct {
	Month int // 1-12
	Total Money
}

// Annual is the yearly view: monthly series for the year and the one before,
// category breakdown and headline numbers.
type Annual struct {
	Year           int
	Total          Money
	PriorTotal     Money
	ChangePercent  float64
	MonthlyAverage Money
	Months         [12]MonthTotal
	PriorMonths    [12]MonthTotal
	ByCategory     []CategoryAmount
	Busiest        MonthTotal
}

// MonthOverview is the dashboard view for a specific year+month.
type MonthOverview struct {
	Year          int
	Month         int // 1-12
	Total         Money
	PreviousTotal Money
	ChangePercent float64
	YearTotal     Money
	TopCategory   *CategoryAmount
	DailyAverage  Money
	Count         int
}

// Query narrows a loaded expense set the way the expense list does.
// Zero values mean "any".
type Query struct {
	Year     int
	Month    int
	Category Category
	Search   string
}

// MonthlyTotals returns all twelve months of year in calendar order,
// including months with no expenses.
func MonthlyTotals(expenses []Expense, year int) [12]MonthTotal {
	var out [12]MonthTotal
	for i := range out {
		out[i].Month = i + 1
	}
	for _, e := range expenses {
		if e.Year != year || e.Month < 1 || e.Month > 12 {
			continue
		}
		out[e.Month-1].Total.Cents += e.Amount.Cents
	}
	return out
}

// CategoryTotals sums the year's expenses per category, omits empty
// categories and sorts by total descending. Ties keep category order.
func CategoryTotals(expenses []Expense, year int) []CategoryAmount {
	sums := make(map[Category]int64, len(categories))
	for _, e := range expenses {
		if e.Year != year || !e.Category.Valid() {
			continue
		}
		sums[e.Category] += e.Amount.Cents
	}
	out := make([]CategoryAmount, 0, len(sums))
	for _, c := range categories {
		if sums[c] > 0 {
			out = append(out, CategoryAmount{Category: c, Amount: Money{Cents: sums[c]}})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Cents > out[j].Amount.Cents
	})
	return out
}

// YearTotal sums every expense of the year.
func YearTotal(expenses []Expense, year int) Money {
	var total Money
	for _, e := range expenses {
		if e.Year == year {
			total.Cents += e.Amount.Cents
		}
	}
	return total
}

// YearOverYear is the percent change of year against year-1.
// It is 0 when the prior year has no spending.
func YearOverYear(expenses []Expense, year int) float64 {
	return percentChange(YearTotal(expenses, year), YearTotal(expenses, year-1))
}

// BusiestMonth returns the month with the highest total; the earliest wins ties.
// With no spending it reports January with a zero total.
func BusiestMonth(expenses []Expense, year int) MonthTotal {
	months := MonthlyTotals(expenses, year)
	best := months[0]
	for _, m := range months[1:] {
		if m.Total.Cents > best.Total.Cents {
			best = m
		}
	}
	return best
}

// AnnualSummary folds the expenses into the yearly view.
func AnnualSummary(expenses []Expense, year int) Annual {
	total := YearTotal(expenses, year)
	prior := YearTotal(expenses, year-1)
	return Annual{
		Year:           year,
		Total:          total,
		PriorTotal:     prior,
		ChangePercent:  percentChange(total, prior),
		MonthlyAverage: Money{Cents: total.Cents / 12},
		Months:         MonthlyTotals(expenses, year),
		PriorMonths:    MonthlyTotals(expenses, year-1),
		ByCategory:     CategoryTotals(expenses, year),
		Busiest:        BusiestMonth(expenses, year),
	}
}

// Overview computes the dashboard numbers for year/month. today decides how
// many days the daily average spreads over: the day of month when today falls
// in the requested month, the full month length otherwise.
func Overview(expenses []Expense, year, month int, today time.Time) MonthOverview {
	prevYear, prevMonth := year, month-1
	if prevMonth < 1 {
		prevMonth = 12
		prevYear--
	}

	ov := MonthOverview{Year: year, Month: month}
	for _, e := range expenses {
		switch {
		case e.Year == year && e.Month == month:
			ov.Total.Cents += e.Amount.Cents
			ov.Count++
		case e.Year == prevYear && e.Month == prevMonth:
			ov.PreviousTotal.Cents += e.Amount.Cents
		}
	}
	ov.ChangePercent = percentChange(ov.Total, ov.PreviousTotal)
	ov.YearTotal = YearTotal(expenses, year)

	if cats := CategoryTotals(expenses, year); len(cats) > 0 {
		top := cats[0]
		ov.TopCategory = &top
	}

	days := daysIn(year, month)
	if today.Year() == year && int(today.Month()) == month {
		days = today.Day()
	}
	ov.DailyAverage = Money{Cents: ov.Total.Cents / int64(days)}
	return ov
}

// Filter returns the expenses matching q, preserving input order.
func Filter(expenses []Expense, q Query) []Expense {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if q.Year != 0 && e.Year != q.Year {
			continue
		}
		if q.Month != 0 && e.Month != q.Month {
			continue
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Description), search) &&
			!strings.Contains(strings.ToLower(e.InvoiceNumber), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Sum adds every amount.
func Sum(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total.Cents += e.Amount.Cents
	}
	return total
}

func percentChange(current, prior Money) float64 {
	if prior.Cents == 0 {
		return 0
	}
	return float64(current.Cents-prior.Cents) / float64(prior.Cents) * 100
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
