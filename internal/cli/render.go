package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"agrogestion/internal/core"
)

var (
	primary  = lipgloss.Color("#2E7D32") // Field Green
	accent   = lipgloss.Color("#F9A825") // Wheat
	errorCol = lipgloss.Color("#C62828")
	text     = lipgloss.Color("#ECEFF1")
	muted    = lipgloss.Color("#78909C")

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primary).
			Bold(true).
			Padding(0, 2)

	subHeaderStyle = lipgloss.NewStyle().
			Foreground(muted).
			Italic(true)

	infoKeyStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(22)

	infoValueStyle = lipgloss.NewStyle().
			Foreground(text).
			Bold(true)

	amountStyle = lipgloss.NewStyle().
			Foreground(accent).
			Align(lipgloss.Right)

	successStyle = lipgloss.NewStyle().
			Foreground(primary).
			Bold(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(errorCol)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

func euros(m core.Money) string {
	return m.String() + " €"
}

func printHeader(w io.Writer, title, sub string) {
	fmt.Fprintln(w, headerStyle.Render(title))
	if sub != "" {
		fmt.Fprintln(w, subHeaderStyle.Render(sub))
	}
}

func printInfo(w io.Writer, key, value string) {
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
		infoKeyStyle.Render(key), infoValueStyle.Render(value)))
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintError writes err in the error style.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, errorTextStyle.Render("error: "+err.Error()))
}

// newTable returns a bordered table whose amount column is right-aligned.
func newTable(headers []string, amountCol int) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(muted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return cellStyle.Bold(true).Foreground(primary)
			case col == amountCol:
				return cellStyle.Inherit(amountStyle)
			default:
				return cellStyle
			}
		})
}

func renderExpenses(w io.Writer, expenses []core.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(w, subHeaderStyle.Render("No expenses"))
		return
	}
	t := newTable([]string{"Fecha", "Descripción", "Categoría", "Factura", "Importe", "ID"}, 4)
	for _, e := range expenses {
		t.Row(e.Date, e.Description, string(e.Category), e.InvoiceNumber, euros(e.Amount), shortID(e.ID))
	}
	fmt.Fprintln(w, t.Render())
	printInfo(w, "Total", euros(core.Sum(expenses)))
}

func renderAnnual(w io.Writer, a core.Annual) {
	printHeader(w, fmt.Sprintf("Resumen %d", a.Year), "")
	printInfo(w, "Total", euros(a.Total))
	printInfo(w, fmt.Sprintf("Total %d", a.Year-1), euros(a.PriorTotal))
	printInfo(w, "Variación", fmt.Sprintf("%+.1f%%", a.ChangePercent))
	printInfo(w, "Media mensual", euros(a.MonthlyAverage))
	if a.Busiest.Total.Cents > 0 {
		printInfo(w, "Mes con más gasto", fmt.Sprintf("%s (%s)", core.MonthName(a.Busiest.Month), euros(a.Busiest.Total)))
	}

	months := newTable([]string{"Mes", fmt.Sprint(a.Year), fmt.Sprint(a.Year - 1)}, 1)
	for i, m := range a.Months {
		months.Row(core.MonthName(m.Month), euros(m.Total), euros(a.PriorMonths[i].Total))
	}
	fmt.Fprintln(w, months.Render())

	if len(a.ByCategory) == 0 {
		return
	}
	cats := newTable([]string{"Categoría", "Importe"}, 1)
	for _, c := range a.ByCategory {
		cats.Row(string(c.Category), euros(c.Amount))
	}
	fmt.Fprintln(w, cats.Render())
}

func renderOverview(w io.Writer, ov core.MonthOverview) {
	printHeader(w, fmt.Sprintf("%s %d", core.MonthName(ov.Month), ov.Year), "")
	printInfo(w, "Gastos del mes", euros(ov.Total))
	printInfo(w, "Mes anterior", euros(ov.PreviousTotal))
	printInfo(w, "Variación", fmt.Sprintf("%+.1f%%", ov.ChangePercent))
	printInfo(w, "Total del año", euros(ov.YearTotal))
	printInfo(w, "Media diaria", euros(ov.DailyAverage))
	printInfo(w, "Movimientos", fmt.Sprint(ov.Count))
	if ov.TopCategory != nil {
		printInfo(w, "Categoría principal", fmt.Sprintf("%s (%s)", ov.TopCategory.Category, euros(ov.TopCategory.Amount)))
	}
}

func renderUser(w io.Writer, u core.User) {
	printHeader(w, u.FarmName, u.Email)
	printInfo(w, "Nombre", u.Name)
	printInfo(w, "ID", u.ID)
	if u.Location != nil {
		printInfo(w, "Ubicación", fmt.Sprintf("%.4f, %.4f", u.Location.Lat, u.Location.Lng))
	}
}

func renderCategories(w io.Writer) {
	names := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		names = append(names, "• "+string(c))
	}
	fmt.Fprintln(w, strings.Join(names, "\n"))
}

// shortID keeps enough of a uuid to pick it out of a listing.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
