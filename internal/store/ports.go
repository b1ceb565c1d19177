// Package store defines the remote store boundary for expense records and the
// column mapping every backend shares.
package store

import (
	"context"

	"agrogestion/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseStore is the authoritative record collection, keyed by id with a
	// secondary index on owner.
	ExpenseStore interface {
		// ListByOwner returns the owner's expenses, newest created first. An
		// owner without records gets an empty slice and a nil error.
		ListByOwner(ctx context.Context, ownerID string) ([]core.Expense, error)
		// Upsert inserts or fully replaces the record with e.ID. Last write wins.
		Upsert(ctx context.Context, e core.Expense) error
		// DeleteByID removes the record. Missing ids are not an error.
		DeleteByID(ctx context.Context, id string) error
	}

	// Closer is implemented by backends holding connections.
	Closer interface {
		Close() error
	}
)

// GetByID finds one of the owner's expenses by listing and filtering.
func GetByID(ctx context.Context, s ExpenseStore, ownerID, id string) (core.Expense, bool, error) {
	expenses, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return core.Expense{}, false, err
	}
	for _, e := range expenses {
		if e.ID == id {
			return e, true, nil
		}
	}
	return core.Expense{}, false, nil
}

// Account is a user record plus its credential, as the local identity
// provider keeps it.
type Account struct {
	User         core.User
	PasswordHash []byte
}

// UserDirectory stores accounts for the local identity provider.
type UserDirectory interface {
	// FindByEmail matches case-insensitively. Returns ErrNotFound when absent.
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	// Create fails with ErrDuplicate when the email is taken.
	Create(ctx context.Context, a Account) error
	// Update replaces the whole account with a.User.ID.
	Update(ctx context.Context, a Account) error
}
