package core

import (
	"math"
	"testing"
	"time"
)

func exp(amount int64, cat Category, year, month int) Expense {
	return Expense{
		ID:       "x",
		UserID:   "u1",
		Amount:   Money{Cents: amount * 100},
		Category: cat,
		Date:     time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format(DateLayout),
		Month:    month,
		Year:     year,
	}
}

func TestMonthlyTotalsScenario(t *testing.T) {
	expenses := []Expense{
		exp(100, CategoryCombustible, 2025, 1),
		exp(50, CategorySemillas, 2025, 1),
		exp(30, CategoryCombustible, 2025, 2),
	}

	months := MonthlyTotals(expenses, 2025)
	want := [12]int64{15000, 3000}
	for i, m := range months {
		if m.Month != i+1 {
			t.Fatalf("month %d out of order: %d", i, m.Month)
		}
		if m.Total.Cents != want[i] {
			t.Fatalf("month %d total = %d, want %d", m.Month, m.Total.Cents, want[i])
		}
	}

	var catSum int64
	for _, c := range CategoryTotals(expenses, 2025) {
		catSum += c.Amount.Cents
	}
	if catSum != 18000 {
		t.Fatalf("category totals sum = %d, want 18000", catSum)
	}

	if b := BusiestMonth(expenses, 2025); b.Month != 1 || b.Total.Cents != 15000 {
		t.Fatalf("unexpected busiest month %+v", b)
	}
}

func TestEmptyInputIsAllZero(t *testing.T) {
	months := MonthlyTotals(nil, 2025)
	for _, m := range months {
		if m.Total.Cents != 0 {
			t.Fatalf("expected zero month, got %+v", m)
		}
	}
	if len(CategoryTotals(nil, 2025)) != 0 {
		t.Fatalf("expected no category entries")
	}
	if YearOverYear(nil, 2025) != 0 {
		t.Fatalf("expected zero year over year")
	}
	if b := BusiestMonth(nil, 2025); b.Month != 1 || b.Total.Cents != 0 {
		t.Fatalf("unexpected busiest month on empty input %+v", b)
	}
	a := AnnualSummary([]Expense{}, 2025)
	if a.Total.Cents != 0 || a.ChangePercent != 0 || len(a.ByCategory) != 0 {
		t.Fatalf("unexpected annual summary %+v", a)
	}
}

func TestYearOverYear(t *testing.T) {
	cases := []struct {
		name     string
		expenses []Expense
		want     float64
	}{
		{"no prior year", []Expense{exp(200, CategoryOtros, 2025, 5)}, 0},
		{"doubled", []Expense{exp(100, CategoryOtros, 2024, 5), exp(200, CategoryOtros, 2025, 5)}, 100},
		{"halved", []Expense{exp(200, CategoryOtros, 2024, 1), exp(100, CategoryOtros, 2025, 1)}, -50},
		{"nothing this year", []Expense{exp(80, CategoryOtros, 2024, 1)}, -100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := YearOverYear(tc.expenses, 2025)
			if math.IsNaN(got) || math.IsInf(got, 0) || math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("YearOverYear = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCategoryTotalsOrdering(t *testing.T) {
	expenses := []Expense{
		exp(10, CategoryOtros, 2025, 1),
		exp(40, CategoryVeterinario, 2025, 2),
		exp(10, CategoryTransporte, 2025, 3),
		exp(0, CategorySeguros, 2025, 3),
		exp(999, CategoryVeterinario, 2024, 3), // other year
	}
	got := CategoryTotals(expenses, 2025)
	want := []Category{CategoryVeterinario, CategoryTransporte, CategoryOtros}
	if len(got) != len(want) {
		t.Fatalf("got %d categories, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Category != want[i] {
			t.Fatalf("position %d = %s, want %s", i, got[i].Category, want[i])
		}
	}
}

func TestBusiestMonthTieTakesEarliest(t *testing.T) {
	expenses := []Expense{
		exp(70, CategoryOtros, 2025, 9),
		exp(70, CategoryOtros, 2025, 4),
	}
	if b := BusiestMonth(expenses, 2025); b.Month != 4 {
		t.Fatalf("expected April on tie, got %d", b.Month)
	}
}

func TestTotalsPartitionExactly(t *testing.T) {
	var expenses []Expense
	cats := Categories()
	for i := 0; i < 60; i++ {
		e := exp(int64(i*7%53), cats[i%len(cats)], 2025, i%12+1)
		e.Amount.Cents += int64(i % 100)
		expenses = append(expenses, e)
	}

	var monthly, byCat int64
	for _, m := range MonthlyTotals(expenses, 2025) {
		monthly += m.Total.Cents
	}
	for _, c := range CategoryTotals(expenses, 2025) {
		byCat += c.Amount.Cents
	}
	flat := Sum(expenses).Cents
	if monthly != flat || byCat != flat {
		t.Fatalf("partition mismatch: monthly=%d category=%d flat=%d", monthly, byCat, flat)
	}
}

func TestAnnualSummary(t *testing.T) {
	expenses := []Expense{
		exp(120, CategoryMaquinaria, 2025, 3),
		exp(60, CategoryMaquinaria, 2024, 3),
	}
	a := AnnualSummary(expenses, 2025)
	if a.Total.Cents != 12000 || a.PriorTotal.Cents != 6000 {
		t.Fatalf("unexpected totals %+v", a)
	}
	if a.ChangePercent != 100 {
		t.Fatalf("expected 100%% change, got %v", a.ChangePercent)
	}
	if a.MonthlyAverage.Cents != 1000 {
		t.Fatalf("expected monthly average 1000, got %d", a.MonthlyAverage.Cents)
	}
	if a.PriorMonths[2].Total.Cents != 6000 {
		t.Fatalf("expected prior March 6000, got %d", a.PriorMonths[2].Total.Cents)
	}
	if a.Busiest.Month != 3 {
		t.Fatalf("expected March busiest, got %d", a.Busiest.Month)
	}
}

func TestOverview(t *testing.T) {
	expenses := []Expense{
		exp(100, CategoryCombustible, 2025, 1),
		exp(50, CategorySemillas, 2025, 1),
		exp(300, CategorySemillas, 2024, 12),
	}
	today := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)
	ov := Overview(expenses, 2025, 1, today)

	if ov.Total.Cents != 15000 || ov.PreviousTotal.Cents != 30000 || ov.Count != 2 {
		t.Fatalf("unexpected totals %+v", ov)
	}
	if ov.ChangePercent != -50 {
		t.Fatalf("expected -50%%, got %v", ov.ChangePercent)
	}
	if ov.TopCategory == nil || ov.TopCategory.Category != CategoryCombustible {
		t.Fatalf("unexpected top category %+v", ov.TopCategory)
	}
	if ov.DailyAverage.Cents != 1500 {
		t.Fatalf("expected daily average over 10 days, got %d", ov.DailyAverage.Cents)
	}

	past := Overview(expenses, 2024, 12, today)
	if past.DailyAverage.Cents != 30000/31 {
		t.Fatalf("expected full-month average, got %d", past.DailyAverage.Cents)
	}
	if past.ChangePercent != 0 {
		t.Fatalf("expected zero change with empty previous month, got %v", past.ChangePercent)
	}
}

func TestFilter(t *testing.T) {
	a := exp(10, CategoryOtros, 2025, 1)
	a.Description = "Gasoil tractor"
	b := exp(20, CategoryVeterinario, 2025, 1)
	b.InvoiceNumber = "FAC-0099"
	c := exp(30, CategoryOtros, 2025, 2)

	expenses := []Expense{a, b, c}
	cases := []struct {
		name string
		q    Query
		want int
	}{
		{"all", Query{}, 3},
		{"month", Query{Year: 2025, Month: 1}, 2},
		{"category", Query{Category: CategoryOtros}, 2},
		{"search description", Query{Search: "TRACTOR"}, 1},
		{"search invoice", Query{Search: "fac-00"}, 1},
		{"no match", Query{Year: 2024}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Filter(expenses, tc.q); len(got) != tc.want {
				t.Fatalf("got %d, want %d", len(got), tc.want)
			}
		})
	}
}
