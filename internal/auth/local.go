package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agrogestion/internal/core"
	"agrogestion/internal/log"
	"agrogestion/internal/store"
)

const minPasswordLength = 6

// ResetMailer delivers password reset tokens.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes reset tokens to the log instead of sending mail.
type LogMailer struct {
	Logger *log.Logger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	logger := m.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	logger.InfoContext(ctx, "Password reset requested", log.FieldEmail, email, "reset_token", token)
	return nil
}

type LocalConfig struct {
	Secret        []byte
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration
	Mailer        ResetMailer
	Logger        *log.Logger
}

// LocalProvider authenticates against a store.UserDirectory with bcrypt
// password hashes and HS256 tokens.
type LocalProvider struct {
	dir      store.UserDirectory
	secret   []byte
	ttl      time.Duration
	resetTTL time.Duration
	mailer   ResetMailer
	logger   *log.Logger
	cost     int
}

var (
	_ Provider       = (*LocalProvider)(nil)
	_ ProfileUpdater = (*LocalProvider)(nil)
)

func NewLocalProvider(dir store.UserDirectory, cfg LocalConfig) *LocalProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentAuth)
	mailer := cfg.Mailer
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &LocalProvider{
		dir:      dir,
		secret:   cfg.Secret,
		ttl:      ttl,
		resetTTL: resetTTL,
		mailer:   mailer,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
	}
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	acct, err := p.dir.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return Identity{}, ErrUnauthorized
	}
	return p.issue(acct.User)
}

func (p *LocalProvider) Register(ctx context.Context, email, password string, profile Profile) (Identity, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return Identity{}, fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	loc := profile.Location
	if loc == nil {
		def := core.DefaultFarmLocation
		loc = &def
	}
	u := core.User{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(profile.Name),
		Email:    email,
		FarmName: strings.TrimSpace(profile.FarmName),
		Location: loc,
	}
	if err := p.dir.Create(ctx, store.Account{User: u, PasswordHash: hash}); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Identity{}, ErrDuplicate
		}
		return Identity{}, fmt.Errorf("create user: %w", err)
	}
	p.logger.InfoContext(ctx, "User registered", "user_id", u.ID)
	return p.issue(u)
}

// RequestPasswordReset mails a reset token. Unknown emails succeed silently
// so the response does not reveal which addresses are registered.
func (p *LocalProvider) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := p.dir.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		p.logger.DebugContext(ctx, "Password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	token, err := generateToken(Claims{
		UserID:      acct.User.ID,
		Email:       acct.User.Email,
		Purpose:     purposeReset,
		Fingerprint: fingerprint(acct.PasswordHash),
	}, p.secret, p.resetTTL)
	if err != nil {
		return err
	}
	return p.mailer.SendPasswordReset(ctx, acct.User.Email, token)
}

// ConfirmPasswordReset sets a new password. A token stops working once the
// password it was issued against has changed.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := parseToken(token, p.secret, purposeReset)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	acct, err := p.dir.FindByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if claims.Fingerprint != fingerprint(acct.PasswordHash) {
		return fmt.Errorf("%w: already used", ErrInvalidToken)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acct.PasswordHash = hash
	if err := p.dir.Update(ctx, acct); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	p.logger.InfoContext(ctx, "Password reset completed", "user_id", acct.User.ID)
	return nil
}

func (p *LocalProvider) CurrentIdentity(ctx context.Context, token string) (Identity, error) {
	claims, err := parseToken(token, p.secret, purposeAccess)
	if err != nil {
		return Identity{}, err
	}
	acct, err := p.dir.FindByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("find user: %w", err)
	}
	return identityFor(acct.User, token), nil
}

// UpdateProfile replaces the stored profile of the token's owner. The
// password is kept. A fresh token is issued since the email may change.
func (p *LocalProvider) UpdateProfile(ctx context.Context, token string, u core.User) (Identity, error) {
	claims, err := parseToken(token, p.secret, purposeAccess)
	if err != nil {
		return Identity{}, err
	}
	if claims.UserID != u.ID {
		return Identity{}, ErrUnauthorized
	}
	if err := u.Validate(); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	acct, err := p.dir.FindByID(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("find user: %w", err)
	}
	acct.User = u
	if err := p.dir.Update(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Identity{}, ErrDuplicate
		}
		return Identity{}, fmt.Errorf("update user: %w", err)
	}
	return p.issue(u)
}

func (p *LocalProvider) issue(u core.User) (Identity, error) {
	token, err := generateToken(Claims{UserID: u.ID, Email: u.Email, Purpose: purposeAccess}, p.secret, p.ttl)
	if err != nil {
		return Identity{}, err
	}
	return identityFor(u, token), nil
}

func fingerprint(hash []byte) string {
	sum := sha256.Sum256(hash)
	return hex.EncodeToString(sum[:8])
}
