// Package session holds the single current-session record and persists it
// across restarts.
package session

import (
	"encoding/json"
	"strings"
	"sync"

	"agrogestion/internal/core"
	"agrogestion/internal/log"
)

const (
	KeyCurrentUser  = "agrogestion_current_user"
	KeySessionToken = "agrogestion_session_token"
)

// Cache never fails. Storage problems and malformed data read as absence and
// are logged. The in-memory copy is authoritative for reads once loaded.
type Cache struct {
	mu      sync.RWMutex
	storage Storage
	logger  *log.Logger

	loaded bool
	user   *core.User
	token  string
}

// New returns a cache over storage. Without a storage backend there is no
// session scope to hold a record, so Get always reports absence.
func New(storage Storage, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Nop()
	}
	return &Cache{storage: storage, logger: logger.WithComponent(log.ComponentSession)}
}

// Get returns the cached session record.
func (c *Cache) Get() (core.User, bool) {
	if c.storage == nil {
		return core.User{}, false
	}
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return core.User{}, false
	}
	return clone(*c.user), true
}

func clone(u core.User) core.User {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	return u
}

// Set replaces the cached record; nil clears it together with the token.
func (c *Cache) Set(u *core.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	if u == nil {
		c.user = nil
		c.token = ""
		c.remove(KeyCurrentUser)
		c.remove(KeySessionToken)
		return
	}
	cp := clone(*u)
	c.user = &cp

	if c.storage == nil {
		return
	}
	b, err := json.Marshal(cp)
	if err != nil {
		c.logger.Warn("Failed to encode session", log.FieldError, err)
		return
	}
	if err := c.storage.Set(KeyCurrentUser, string(b)); err != nil {
		c.logger.Warn("Failed to persist session", log.FieldError, err)
	}
}

// FindByEmail returns the cached record when its email matches. It does not
// resolve any other user.
func (c *Cache) FindByEmail(email string) (core.User, bool) {
	u, ok := c.Get()
	if !ok || !core.SameEmail(u.Email, email) {
		return core.User{}, false
	}
	return u, true
}

// Token returns the identity token stored alongside the session.
func (c *Cache) Token() string {
	if c.storage == nil {
		return ""
	}
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Cache) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.token = token
	if token == "" {
		c.remove(KeySessionToken)
		return
	}
	if c.storage == nil {
		return
	}
	if err := c.storage.Set(KeySessionToken, token); err != nil {
		c.logger.Warn("Failed to persist session token", log.FieldError, err)
	}
}

func (c *Cache) ensureLoaded() {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}
	c.loaded = true
	if c.storage == nil {
		return
	}
	c.user = c.readUser()
	if c.user != nil {
		c.token = c.read(KeySessionToken)
	}
}

func (c *Cache) readUser() *core.User {
	raw := c.read(KeyCurrentUser)
	if raw == "" {
		return nil
	}
	var u core.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		c.logger.Warn("Discarding malformed session", log.FieldError, err)
		return nil
	}
	if u.Validate() != nil {
		c.logger.Warn("Discarding incomplete session", "id", u.ID)
		return nil
	}
	return &u
}

func (c *Cache) read(key string) string {
	v, ok, err := c.storage.Get(key)
	if err != nil {
		c.logger.Warn("Failed to read session storage", "key", key, log.FieldError, err)
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (c *Cache) remove(key string) {
	if c.storage == nil {
		return
	}
	if err := c.storage.Remove(key); err != nil {
		c.logger.Warn("Failed to remove session key", "key", key, log.FieldError, err)
	}
}
