// Package auth defines the identity provider boundary, a local provider
// backed by the account directory, and the session context the CLI drives.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"agrogestion/internal/core"
)

var (
	ErrUnauthorized = errors.New("invalid credentials")
	ErrDuplicate    = errors.New("email already registered")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidToken = errors.New("invalid token")
)

// Profile carries the attributes collected at registration.
type Profile struct {
	Name     string
	FarmName string
	Location *core.GeoPoint
}

// Identity is what a provider returns for an authenticated user. Metadata
// holds provider-specific profile attributes; use UserFromIdentity to read it.
type Identity struct {
	UserID   string
	Email    string
	Token    string
	Metadata map[string]any
}

type Provider interface {
	Authenticate(ctx context.Context, email, password string) (Identity, error)
	Register(ctx context.Context, email, password string, profile Profile) (Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	CurrentIdentity(ctx context.Context, token string) (Identity, error)
}

// ProfileUpdater is implemented by providers that store profile attributes.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, token string, u core.User) (Identity, error)
}

// Metadata keys written by LocalProvider.
const (
	MetaName     = "name"
	MetaFarmName = "farm_name"
	MetaLat      = "lat"
	MetaLng      = "lng"
)

// UserFromIdentity builds the session record. Missing or mistyped metadata
// falls back to zero values; the location is set only when both coordinates
// are present.
func UserFromIdentity(id Identity) core.User {
	u := core.User{
		ID:       id.UserID,
		Email:    strings.TrimSpace(id.Email),
		Name:     metaString(id.Metadata, MetaName),
		FarmName: metaString(id.Metadata, MetaFarmName),
	}
	lat, okLat := metaFloat(id.Metadata, MetaLat)
	lng, okLng := metaFloat(id.Metadata, MetaLng)
	if okLat && okLng {
		u.Location = &core.GeoPoint{Lat: lat, Lng: lng}
	}
	return u
}

func identityFor(u core.User, token string) Identity {
	meta := map[string]any{
		MetaName:     u.Name,
		MetaFarmName: u.FarmName,
	}
	if u.Location != nil {
		meta[MetaLat] = u.Location.Lat
		meta[MetaLng] = u.Location.Lng
	}
	return Identity{UserID: u.ID, Email: u.Email, Token: token, Metadata: meta}
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func metaFloat(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
