package ledger

import (
	"context"

	"agrogestion/internal/core"
	"agrogestion/internal/store"
)

// Service builds Lists over one store and applies the reload-after-write
// rule, so every caller observes its own confirmed writes.
type Service struct {
	store store.ExpenseStore
	cfg   Config
}

func NewService(s store.ExpenseStore, cfg Config) *Service {
	return &Service{store: s, cfg: cfg}
}

// Open returns a new List loaded for owner. The bool reports whether the
// load succeeded; the List is usable either way.
func (s *Service) Open(ctx context.Context, ownerID string) (*List, bool) {
	l := NewList(s.store, s.cfg)
	ok := l.Load(ctx, ownerID)
	return l, ok
}

// Save writes through l and reloads it on success. A failed reload does not
// turn a confirmed write into a failure; check l.State.
func (s *Service) Save(ctx context.Context, l *List, e core.Expense) bool {
	if !l.Save(ctx, e) {
		return false
	}
	l.Refresh(ctx)
	return true
}

func (s *Service) Remove(ctx context.Context, l *List, id string) bool {
	if !l.Remove(ctx, id) {
		return false
	}
	l.Refresh(ctx)
	return true
}
