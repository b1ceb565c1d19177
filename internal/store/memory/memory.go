package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"agrogestion/internal/core"
	"agrogestion/internal/store"
)

type entry struct {
	expense core.Expense
	seq     int64 // creation order
}

// Store keeps expenses in process memory. Upserts keep the original creation
// position, like a created_at column would.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	seq   int64
}

// Ensure interface conformance
var _ store.ExpenseStore = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string]entry)}
}

// NewSeeded returns a store pre-filled with expenses, in creation order.
func NewSeeded(expenses ...core.Expense) *Store {
	s := New()
	for _, e := range expenses {
		_ = s.Upsert(context.Background(), e)
	}
	return s
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]entry, 0)
	for _, it := range s.items {
		if it.expense.UserID == ownerID {
			matched = append(matched, it)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	out := make([]core.Expense, len(matched))
	for i, it := range matched {
		out[i] = it.expense
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, e core.Expense) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrRejected, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[e.ID]; ok {
		if existing.expense.UserID != e.UserID {
			return fmt.Errorf("%w: expense %s belongs to another owner", store.ErrRejected, e.ID)
		}
		existing.expense = e
		s.items[e.ID] = existing
		return nil
	}
	s.seq++
	s.items[e.ID] = entry{expense: e, seq: s.seq}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Len returns the number of stored records across all owners.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
