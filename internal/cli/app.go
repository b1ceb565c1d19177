package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"agrogestion/internal/auth"
	"agrogestion/internal/core"
	"agrogestion/internal/ledger"
	"agrogestion/internal/log"
)

var (
	ErrUsage       = errors.New("usage")
	ErrNotLoggedIn = errors.New("not logged in, run: login <email> <password>")
	ErrAmbiguousID = errors.New("id prefix matches more than one expense")
	ErrUnknownID   = errors.New("no expense with that id")
)

const usage = `agrogestion-cli <command> [flags]

  register <email> <password> [-name N] [-farm F]
  login <email> <password>
  logout
  whoami
  categories
  list [-year Y] [-month M] [-category C] [-q TEXT]
  add -amount A -category C -desc D [-invoice I] [-date YYYY-MM-DD]
  edit <id> [-amount A] [-category C] [-desc D] [-invoice I] [-date YYYY-MM-DD]
  rm <id>
  summary [-year Y]
  dashboard [-year Y] [-month M]
  reset-password <email>
  confirm-reset <token> <new-password>`

// App runs one command against the signed-in session. Expenses are read and
// written through a fresh ledger.List per command.
type App struct {
	Auth     *auth.Context
	Expenses *ledger.Service
	Out      io.Writer
	Now      func() time.Time
	Logger   *log.Logger
}

type command func(ctx context.Context, args []string) error

func (a *App) commands() map[string]command {
	return map[string]command{
		"register":       a.register,
		"login":          a.login,
		"logout":         a.logout,
		"whoami":         a.whoami,
		"categories":     a.categories,
		"list":           a.list,
		"add":            a.add,
		"edit":           a.edit,
		"rm":             a.remove,
		"summary":        a.summary,
		"dashboard":      a.dashboard,
		"reset-password": a.resetPassword,
		"confirm-reset":  a.confirmReset,
	}
}

// Run dispatches args[0]. The session is restored before every command.
func (a *App) Run(ctx context.Context, args []string) error {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.Logger == nil {
		a.Logger = log.Nop()
	}
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		fmt.Fprintln(a.Out, usage)
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}
	cmd, ok := a.commands()[args[0]]
	if !ok {
		fmt.Fprintln(a.Out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	a.Auth.Init(ctx)
	return cmd(ctx, args[1:])
}

func (a *App) currentUser() (core.User, error) {
	u, ok := a.Auth.User()
	if !ok {
		return core.User{}, ErrNotLoggedIn
	}
	return u, nil
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	name := fs.String("name", "", "your name")
	farm := fs.String("farm", "", "farm name")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return fmt.Errorf("%w: register <email> <password>", ErrUsage)
	}
	if !a.Auth.Register(ctx, pos[0], pos[1], auth.Profile{Name: *name, FarmName: *farm}) {
		return errors.New("registration failed")
	}
	u, _ := a.Auth.User()
	printSuccess(a.Out, "Registered %s", u.Email)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: login <email> <password>", ErrUsage)
	}
	if !a.Auth.Login(ctx, args[0], args[1]) {
		return errors.New("login failed")
	}
	u, _ := a.Auth.User()
	printSuccess(a.Out, "Logged in as %s", u.Email)
	return nil
}

func (a *App) logout(context.Context, []string) error {
	a.Auth.Logout()
	printSuccess(a.Out, "Logged out")
	return nil
}

func (a *App) whoami(context.Context, []string) error {
	u, err := a.currentUser()
	if err != nil {
		return err
	}
	renderUser(a.Out, u)
	return nil
}

func (a *App) categories(context.Context, []string) error {
	renderCategories(a.Out)
	return nil
}

// open loads the signed-in user's expenses. A failed load is an error: the
// listing would be empty rather than wrong, but a CLI user should know.
func (a *App) open(ctx context.Context) (*ledger.List, error) {
	u, err := a.currentUser()
	if err != nil {
		return nil, err
	}
	l, ok := a.Expenses.Open(ctx, u.ID)
	if !ok {
		return l, failureError(l)
	}
	return l, nil
}

func (a *App) list(ctx context.Context, args []string) error {
	fs := a.flags("list")
	year := fs.Int("year", 0, "only this year")
	month := fs.Int("month", 0, "only this month (1-12)")
	category := fs.String("category", "", "only this category")
	search := fs.String("q", "", "text in description or invoice")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := core.Query{Year: *year, Month: *month, Search: *search}
	if *category != "" {
		c, err := core.ParseCategory(*category)
		if err != nil {
			return err
		}
		q.Category = c
	}
	l, err := a.open(ctx)
	if err != nil {
		return err
	}
	renderExpenses(a.Out, core.Filter(l.Expenses(), q))
	return nil
}

type expenseFlags struct {
	amount, category, desc, invoice, date *string
}

func (a *App) expenseFlagSet(name string) (*flag.FlagSet, expenseFlags) {
	fs := a.flags(name)
	return fs, expenseFlags{
		amount:   fs.String("amount", "", "amount in euros, e.g. 12,50"),
		category: fs.String("category", "", "expense category"),
		desc:     fs.String("desc", "", "description"),
		invoice:  fs.String("invoice", "", "invoice number"),
		date:     fs.String("date", "", "date as YYYY-MM-DD"),
	}
}

// apply overwrites the fields of e that were given on the command line.
func (f expenseFlags) apply(fs *flag.FlagSet, e core.Expense) (core.Expense, error) {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "amount":
			var cents int64
			if cents, err = core.ParseDecimalToCents(*f.amount); err == nil {
				e.Amount = core.Money{Cents: cents}
			}
		case "category":
			e.Category, err = core.ParseCategory(*f.category)
		case "desc":
			e.Description = strings.TrimSpace(*f.desc)
		case "invoice":
			e.InvoiceNumber = strings.TrimSpace(*f.invoice)
		case "date":
			var at time.Time
			if at, err = time.Parse(core.DateLayout, *f.date); err != nil {
				err = fmt.Errorf("%w: %q", core.ErrInvalidDate, *f.date)
				return
			}
			e.Date, e.Month, e.Year = at.Format(core.DateLayout), int(at.Month()), at.Year()
		}
	})
	if err != nil {
		return core.Expense{}, err
	}
	return e, e.Validate()
}

func (a *App) add(ctx context.Context, args []string) error {
	fs, f := a.expenseFlagSet("add")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*f.amount) == "" {
		return fmt.Errorf("%w: add needs -amount", ErrUsage)
	}
	u, err := a.currentUser()
	if err != nil {
		return err
	}
	e, err := f.apply(fs, core.NewExpense(u.ID, "", "", core.Money{}, "", a.Now()))
	if err != nil {
		return err
	}
	// The write goes through even when the load fails.
	l, _ := a.Expenses.Open(ctx, u.ID)
	if !a.Expenses.Save(ctx, l, e) {
		return failureError(l)
	}
	printSuccess(a.Out, "Added %s %s (%s)", e.Description, euros(e.Amount), shortID(e.ID))
	return nil
}

func (a *App) edit(ctx context.Context, args []string) error {
	fs, f := a.expenseFlagSet("edit")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return fmt.Errorf("%w: edit <id> [flags]", ErrUsage)
	}
	l, err := a.open(ctx)
	if err != nil {
		return err
	}
	current, err := resolveID(l.Expenses(), pos[0])
	if err != nil {
		return err
	}
	e, err := f.apply(fs, current)
	if err != nil {
		return err
	}
	if !a.Expenses.Save(ctx, l, e) {
		return failureError(l)
	}
	printSuccess(a.Out, "Updated %s", shortID(e.ID))
	return nil
}

func (a *App) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: rm <id>", ErrUsage)
	}
	l, err := a.open(ctx)
	if err != nil {
		return err
	}
	e, err := resolveID(l.Expenses(), args[0])
	if err != nil {
		return err
	}
	if !a.Expenses.Remove(ctx, l, e.ID) {
		return failureError(l)
	}
	printSuccess(a.Out, "Removed %s %s", e.Description, euros(e.Amount))
	return nil
}

func (a *App) summary(ctx context.Context, args []string) error {
	fs := a.flags("summary")
	year := fs.Int("year", a.Now().Year(), "year to summarise")
	if err := fs.Parse(args); err != nil {
		return err
	}
	l, err := a.open(ctx)
	if err != nil {
		return err
	}
	renderAnnual(a.Out, core.AnnualSummary(l.Expenses(), *year))
	return nil
}

func (a *App) dashboard(ctx context.Context, args []string) error {
	now := a.Now()
	fs := a.flags("dashboard")
	year := fs.Int("year", now.Year(), "year")
	month := fs.Int("month", int(now.Month()), "month (1-12)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *month < 1 || *month > 12 {
		return core.ErrInvalidMonth
	}
	l, err := a.open(ctx)
	if err != nil {
		return err
	}
	renderOverview(a.Out, core.Overview(l.Expenses(), *year, *month, now))
	return nil
}

func (a *App) resetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: reset-password <email>", ErrUsage)
	}
	if !a.Auth.RequestPasswordReset(ctx, args[0]) {
		return errors.New("password reset request failed")
	}
	printSuccess(a.Out, "If the account exists a reset link is on its way")
	return nil
}

func (a *App) confirmReset(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: confirm-reset <token> <new-password>", ErrUsage)
	}
	if !a.Auth.ConfirmPasswordReset(ctx, args[0], args[1]) {
		return errors.New("password reset failed")
	}
	printSuccess(a.Out, "Password changed, log in again")
	return nil
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	return fs
}

// parseInterspersed lets positional arguments come before the flags.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// resolveID accepts a full id or a unique prefix of one.
func resolveID(expenses []core.Expense, ref string) (core.Expense, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return core.Expense{}, ErrUnknownID
	}
	var (
		found core.Expense
		n     int
	)
	for _, e := range expenses {
		if e.ID == ref {
			return e, nil
		}
		if strings.HasPrefix(e.ID, ref) {
			found = e
			n++
		}
	}
	switch n {
	case 0:
		return core.Expense{}, fmt.Errorf("%w: %s", ErrUnknownID, ref)
	case 1:
		return found, nil
	default:
		return core.Expense{}, fmt.Errorf("%w: %s (%d matches)", ErrAmbiguousID, ref, n)
	}
}

func failureError(l *ledger.List) error {
	if f := l.LastFailure(); f != nil {
		return f
	}
	return errors.New("remote store failed")
}
