// Package ledger caches one owner's expenses for a single view and writes
// changes through to the remote store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agrogestion/internal/core"
	"agrogestion/internal/log"
	"agrogestion/internal/store"
)

const DefaultTimeout = 7 * time.Second

// Change is emitted after a write the store confirmed.
type Change struct {
	Op        string `json:"op"`
	ExpenseID string `json:"expense_id"`
	OwnerID   string `json:"owner_id"`
	Year      int    `json:"year,omitempty"`
	// PrevYear is set when an update moved the expense out of that year.
	PrevYear int `json:"prev_year,omitempty"`
}

// Notifier is told about confirmed writes. Its errors are logged only.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// Notifiers fans a change out to every member. All members are called even
// when some fail.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, c Change) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Config struct {
	// Timeout bounds every store call.
	Timeout  time.Duration
	Notifier Notifier
	Logger   *log.Logger
}

// List is the cached expense set of one view. Each view owns its own List;
// nothing is shared between Lists.
//
// Writes are write-through and never touch the cached set. Callers reload to
// observe them.
type List struct {
	store    store.ExpenseStore
	timeout  time.Duration
	notifier Notifier
	logger   *log.Logger

	mu          sync.RWMutex
	owner       string
	state       State
	expenses    []core.Expense
	generation  uint64
	lastFailure *Failure
}

func NewList(s store.ExpenseStore, cfg Config) *List {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &List{
		store:    s,
		timeout:  timeout,
		notifier: cfg.Notifier,
		logger:   logger.WithComponent(log.ComponentLedger),
	}
}

// Load fetches the owner's full set and replaces the cached one. On failure
// the cached set is left as it was and the state becomes Error. A response
// that arrives after a newer Load started is discarded and reported as false.
func (l *List) Load(ctx context.Context, ownerID string) bool {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.owner = ownerID
	l.state = Loading
	l.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	started := time.Now()
	expenses, err := l.store.ListByOwner(cctx, ownerID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		l.logger.DebugContext(ctx, "Discarding stale load",
			log.FieldGeneration, gen,
			"latest_generation", l.generation)
		return false
	}
	if err != nil {
		l.state = Error
		l.lastFailure = classify(log.OpLoad, err)
		l.logger.WarnContext(ctx, "Load failed",
			log.FieldOwnerID, ownerID,
			log.FieldErrorKind, l.lastFailure.Kind.String(),
			log.FieldError, err)
		return false
	}

	fresh := make([]core.Expense, len(expenses))
	copy(fresh, expenses)
	l.expenses = fresh
	l.state = Ready
	l.lastFailure = nil
	l.logger.DebugContext(ctx, "Load completed",
		log.FieldOwnerID, ownerID,
		log.FieldCount, len(fresh),
		log.FieldDuration, time.Since(started).Milliseconds())
	return true
}

// Refresh reloads the owner of the last Load.
func (l *List) Refresh(ctx context.Context) bool {
	l.mu.RLock()
	owner := l.owner
	l.mu.RUnlock()
	if owner == "" {
		l.fail(&Failure{Kind: Terminal, Op: log.OpLoad, Err: ErrNoScope})
		return false
	}
	return l.Load(ctx, owner)
}

// Save upserts e. It is an update when e.ID is in the cached set and a
// create otherwise. The cached set is not modified.
func (l *List) Save(ctx context.Context, e core.Expense) bool {
	op := log.OpCreate
	prev, known := l.Find(e.ID)
	if known {
		op = log.OpUpdate
	}
	if err := e.Validate(); err != nil {
		l.fail(&Failure{Kind: Terminal, Op: op, Err: fmt.Errorf("%w: %w", store.ErrRejected, err)})
		l.logger.WarnContext(ctx, "Rejected invalid expense",
			log.FieldOperation, op,
			log.FieldExpenseID, e.ID,
			log.FieldError, err)
		return false
	}
	if owner := l.Owner(); owner != "" && owner != e.UserID {
		l.fail(&Failure{Kind: Terminal, Op: op, Err: fmt.Errorf("%w: expense owner %q outside scope", store.ErrRejected, e.UserID)})
		return false
	}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.store.Upsert(cctx, e); err != nil {
		f := classify(op, err)
		l.fail(f)
		l.logger.WarnContext(ctx, "Save failed",
			log.FieldOperation, op,
			log.FieldExpenseID, e.ID,
			log.FieldErrorKind, f.Kind.String(),
			log.FieldError, err)
		return false
	}

	l.logger.InfoContext(ctx, "Expense saved",
		append(log.NewFields().WithOperation(op).WithExpense(e.ID, e.Amount.Cents, string(e.Category)).ToSlice(),
			log.FieldOwnerID, e.UserID)...)
	change := Change{Op: op, ExpenseID: e.ID, OwnerID: e.UserID, Year: e.Year}
	switch {
	case known && prev.Year != e.Year:
		change.PrevYear = prev.Year
	case !known && l.State() != Ready:
		// No loaded copy to compare with: the id may already exist in any year.
		change.Year = 0
	}
	l.notify(ctx, change)
	return true
}

// Remove deletes id from the store. Unknown ids succeed.
func (l *List) Remove(ctx context.Context, id string) bool {
	if id == "" {
		l.fail(&Failure{Kind: Terminal, Op: log.OpDelete, Err: fmt.Errorf("%w: %w", store.ErrRejected, core.ErrEmptyID)})
		return false
	}
	year := 0
	if e, ok := l.Find(id); ok {
		year = e.Year
	}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.store.DeleteByID(cctx, id); err != nil {
		f := classify(log.OpDelete, err)
		l.fail(f)
		l.logger.WarnContext(ctx, "Remove failed",
			log.FieldExpenseID, id,
			log.FieldErrorKind, f.Kind.String(),
			log.FieldError, err)
		return false
	}

	l.logger.InfoContext(ctx, "Expense removed", log.FieldExpenseID, id)
	l.notify(ctx, Change{Op: log.OpDelete, ExpenseID: id, OwnerID: l.Owner(), Year: year})
	return true
}

// Expenses returns a copy of the cached set, newest first.
func (l *List) Expenses() []core.Expense {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.Expense, len(l.expenses))
	copy(out, l.expenses)
	return out
}

func (l *List) Find(id string) (core.Expense, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}

func (l *List) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *List) Owner() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

// LastFailure is nil after a successful Load or when nothing has failed yet.
func (l *List) LastFailure() *Failure {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastFailure
}

func (l *List) fail(f *Failure) {
	l.mu.Lock()
	l.lastFailure = f
	l.mu.Unlock()
}

func (l *List) notify(ctx context.Context, c Change) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, c); err != nil {
		l.logger.WarnContext(ctx, "Change notification failed",
			log.FieldOperation, c.Op,
			log.FieldExpenseID, c.ExpenseID,
			log.FieldError, err)
	}
}
