package auth

import (
	"context"
	"errors"

	"agrogestion/internal/core"
	"agrogestion/internal/log"
	"agrogestion/internal/session"
)

// Context is the current-session state for one interactive client. Every
// mutating action keeps the session cache in step with the provider.
// Provider failures are logged and reported as false.
type Context struct {
	provider Provider
	cache    *session.Cache
	logger   *log.Logger
}

func NewContext(provider Provider, cache *session.Cache, logger *log.Logger) *Context {
	if logger == nil {
		logger = log.Nop()
	}
	return &Context{provider: provider, cache: cache, logger: logger.WithComponent(log.ComponentAuth)}
}

// Init reads the persisted session once. A stored token the provider
// rejects clears the session; an unreachable provider keeps it.
func (c *Context) Init(ctx context.Context) (core.User, bool) {
	u, ok := c.cache.Get()
	if !ok {
		return core.User{}, false
	}
	token := c.cache.Token()
	if token == "" {
		return u, true
	}
	id, err := c.provider.CurrentIdentity(ctx, token)
	switch {
	case err == nil:
		fresh := UserFromIdentity(id)
		c.cache.Set(&fresh)
		c.cache.SetToken(token)
		return fresh, true
	case errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrUnauthorized):
		c.logger.InfoContext(ctx, "Stored session no longer valid", log.FieldError, err)
		c.cache.Set(nil)
		return core.User{}, false
	default:
		c.logger.WarnContext(ctx, "Could not verify stored session", log.FieldError, err)
		return u, true
	}
}

func (c *Context) User() (core.User, bool) {
	return c.cache.Get()
}

func (c *Context) Token() string {
	return c.cache.Token()
}

func (c *Context) Login(ctx context.Context, email, password string) bool {
	id, err := c.provider.Authenticate(ctx, email, password)
	if err != nil {
		c.logger.WarnContext(ctx, "Login failed", log.FieldOperation, log.OpLogin, log.FieldError, err)
		return false
	}
	c.remember(id)
	c.logger.InfoContext(ctx, "Logged in", log.FieldOperation, log.OpLogin, "user_id", id.UserID)
	return true
}

func (c *Context) Register(ctx context.Context, email, password string, profile Profile) bool {
	id, err := c.provider.Register(ctx, email, password, profile)
	if err != nil {
		c.logger.WarnContext(ctx, "Registration failed", log.FieldOperation, log.OpRegister, log.FieldError, err)
		return false
	}
	c.remember(id)
	return true
}

func (c *Context) Logout() {
	c.cache.Set(nil)
	c.logger.Info("Logged out", log.FieldOperation, log.OpLogout)
}

// UpdateUser replaces the whole session record. Only the signed-in user can
// be updated. Providers that store profiles are updated first.
func (c *Context) UpdateUser(ctx context.Context, u core.User) bool {
	current, ok := c.cache.Get()
	if !ok || current.ID != u.ID {
		return false
	}
	if err := u.Validate(); err != nil {
		c.logger.WarnContext(ctx, "Rejected profile update", log.FieldError, err)
		return false
	}
	if updater, ok := c.provider.(ProfileUpdater); ok {
		id, err := updater.UpdateProfile(ctx, c.cache.Token(), u)
		if err != nil {
			c.logger.WarnContext(ctx, "Profile update failed", log.FieldError, err)
			return false
		}
		c.remember(id)
		return true
	}
	c.cache.Set(&u)
	return true
}

func (c *Context) RequestPasswordReset(ctx context.Context, email string) bool {
	if err := c.provider.RequestPasswordReset(ctx, email); err != nil {
		c.logger.WarnContext(ctx, "Password reset request failed", log.FieldOperation, log.OpReset, log.FieldError, err)
		return false
	}
	return true
}

func (c *Context) ConfirmPasswordReset(ctx context.Context, token, newPassword string) bool {
	if err := c.provider.ConfirmPasswordReset(ctx, token, newPassword); err != nil {
		c.logger.WarnContext(ctx, "Password reset failed", log.FieldOperation, log.OpReset, log.FieldError, err)
		return false
	}
	return true
}

func (c *Context) remember(id Identity) {
	u := UserFromIdentity(id)
	c.cache.Set(&u)
	c.cache.SetToken(id.Token)
}
