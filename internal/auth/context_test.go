package auth

import (
	"context"
	"testing"

	"agrogestion/internal/core"
	"agrogestion/internal/session"
	"agrogestion/internal/store"
)

func newTestContext(t *testing.T) (*Context, *LocalProvider, session.Storage) {
	t.Helper()
	p, _ := newTestProvider(t)
	storage := session.NewMemoryStorage()
	return NewContext(p, session.New(storage, nil), nil), p, storage
}

func TestContext_RegisterLoginLogout(t *testing.T) {
	c, _, _ := newTestContext(t)
	ctx := context.Background()

	if !c.Register(ctx, "ana@granja.es", "secreto1", Profile{Name: "Ana", FarmName: "La Vega"}) {
		t.Fatal("Register failed")
	}
	u, ok := c.User()
	if !ok || u.Email != "ana@granja.es" || c.Token() == "" {
		t.Fatalf("session not set after register: %+v", u)
	}
	if c.Register(ctx, "ana@granja.es", "secreto1", Profile{}) {
		t.Fatal("duplicate registration must fail")
	}

	c.Logout()
	if _, ok := c.User(); ok {
		t.Fatal("session survived logout")
	}
	if c.Login(ctx, "ana@granja.es", "mala") {
		t.Fatal("login with wrong password succeeded")
	}
	if _, ok := c.User(); ok {
		t.Fatal("failed login must not create a session")
	}
	if !c.Login(ctx, "ana@granja.es", "secreto1") {
		t.Fatal("Login failed")
	}
	if u, _ := c.User(); u.FarmName != "La Vega" {
		t.Fatalf("unexpected session user: %+v", u)
	}
}

func TestContext_InitRestoresAndValidates(t *testing.T) {
	c, p, storage := newTestContext(t)
	ctx := context.Background()
	if !c.Register(ctx, "ana@granja.es", "secreto1", Profile{Name: "Ana"}) {
		t.Fatal("Register failed")
	}

	restored := NewContext(p, session.New(storage, nil), nil)
	u, ok := restored.Init(ctx)
	if !ok || u.Name != "Ana" {
		t.Fatalf("Init did not restore session: %+v ok=%v", u, ok)
	}

	_ = storage.Set(session.KeySessionToken, "tampered")
	rejected := NewContext(p, session.New(storage, nil), nil)
	if _, ok := rejected.Init(ctx); ok {
		t.Fatal("session with an invalid token should be cleared")
	}
	if _, ok, _ := storage.Get(session.KeyCurrentUser); ok {
		t.Fatal("invalid session left in storage")
	}
}

type downProvider struct{ Provider }

func (downProvider) CurrentIdentity(context.Context, string) (Identity, error) {
	return Identity{}, store.ErrUnavailable
}

func TestContext_InitKeepsSessionWhenProviderDown(t *testing.T) {
	storage := session.NewMemoryStorage()
	cache := session.New(storage, nil)
	cache.Set(&core.User{ID: "u1", Email: "ana@granja.es"})
	cache.SetToken("tok")

	c := NewContext(downProvider{}, session.New(storage, nil), nil)
	if u, ok := c.Init(context.Background()); !ok || u.ID != "u1" {
		t.Fatalf("expected cached session kept, got %+v ok=%v", u, ok)
	}
}

func TestContext_UpdateUser(t *testing.T) {
	c, p, _ := newTestContext(t)
	ctx := context.Background()
	if !c.Register(ctx, "ana@granja.es", "secreto1", Profile{Name: "Ana"}) {
		t.Fatal("Register failed")
	}
	u, _ := c.User()
	u.Name = "Ana María"
	u.Location = &core.GeoPoint{Lat: 37.39, Lng: -5.98}
	if !c.UpdateUser(ctx, u) {
		t.Fatal("UpdateUser failed")
	}
	got, _ := c.User()
	if got.Name != "Ana María" || got.Location.Lat != 37.39 {
		t.Fatalf("session not replaced: %+v", got)
	}
	acct, err := p.dir.FindByID(ctx, u.ID)
	if err != nil || acct.User.Name != "Ana María" {
		t.Fatalf("profile not persisted: %+v err=%v", acct.User, err)
	}

	stranger := u
	stranger.ID = "someone-else"
	if c.UpdateUser(ctx, stranger) {
		t.Fatal("updated a user that is not signed in")
	}
}

func TestContext_PasswordResetCollapsesErrors(t *testing.T) {
	c, _, _ := newTestContext(t)
	ctx := context.Background()
	if !c.RequestPasswordReset(ctx, "nadie@granja.es") {
		t.Fatal("reset request for unknown email should report success")
	}
	if c.ConfirmPasswordReset(ctx, "bogus", "nueva-clave") {
		t.Fatal("bogus reset token accepted")
	}
}
