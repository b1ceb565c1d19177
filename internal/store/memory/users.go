package memory

import (
	"context"
	"strings"
	"sync"

	"agrogestion/internal/store"
)

// Users is an in-process account directory.
type Users struct {
	mu   sync.Mutex
	byID map[string]store.Account
}

var _ store.UserDirectory = (*Users)(nil)

func NewUsers() *Users {
	return &Users{byID: make(map[string]store.Account)}
}

func (u *Users) FindByEmail(_ context.Context, email string) (store.Account, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, a := range u.byID {
		if strings.EqualFold(a.User.Email, strings.TrimSpace(email)) {
			return a, nil
		}
	}
	return store.Account{}, store.ErrNotFound
}

func (u *Users) FindByID(_ context.Context, id string) (store.Account, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	a, ok := u.byID[id]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (u *Users) Create(_ context.Context, a store.Account) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byID[a.User.ID]; ok {
		return store.ErrDuplicate
	}
	for _, existing := range u.byID {
		if strings.EqualFold(existing.User.Email, a.User.Email) {
			return store.ErrDuplicate
		}
	}
	u.byID[a.User.ID] = a
	return nil
}

func (u *Users) Update(_ context.Context, a store.Account) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byID[a.User.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range u.byID {
		if id != a.User.ID && strings.EqualFold(existing.User.Email, a.User.Email) {
			return store.ErrDuplicate
		}
	}
	u.byID[a.User.ID] = a
	return nil
}
