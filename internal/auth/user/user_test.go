package user

import (
	"errors"
	"testing"
	"time"
)

func staticID(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

func staticSecret(value string) func(int) (string, error) {
	return func(int) (string, error) { return value, nil }
}

func TestNewUserDefaults(t *testing.T) {
	u, err := NewUser(NewUserInput{Name: "  Paulus  "}, staticID("user-1"))
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if u.ID != "user-1" {
		t.Fatalf("unexpected id %q", u.ID)
	}
	if u.Name != "Paulus" {
		t.Fatalf("expected trimmed name, got %q", u.Name)
	}
	if u.IsOwner || u.IsActive || u.SystemGenerated {
		t.Fatalf("expected zero flags, got %+v", u)
	}
	if u.RefreshTokens == nil {
		t.Fatal("expected initialized refresh token map")
	}
}

func TestNewUserGeneratorError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewUser(NewUserInput{Name: "x"}, func() (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestNewCredentialsStartNew(t *testing.T) {
	creds, err := NewCredentials("homeassistant", "", map[string]any{"username": "paulus"}, staticID("cred-1"))
	if err != nil {
		t.Fatalf("new credentials: %v", err)
	}
	if !creds.IsNew {
		t.Fatal("expected new credentials to be flagged IsNew")
	}
	if creds.AuthProviderType != "homeassistant" || creds.AuthProviderID != "" {
		t.Fatalf("unexpected provider identity: %+v", creds)
	}
}

func TestNewCredentialsRequiresProviderType(t *testing.T) {
	if _, err := NewCredentials("", "", nil, staticID("cred-1")); err == nil {
		t.Fatal("expected error for empty provider type")
	}
}

func TestNewRefreshTokenDefaults(t *testing.T) {
	owner := &User{ID: "user-1", RefreshTokens: map[string]*RefreshToken{}}
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	rt, err := NewRefreshToken(owner, "client-1", 0, func() time.Time { return created }, staticID("rt-1"), staticSecret("secret"))
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if rt.AccessTokenExpiration != DefaultAccessTokenExpiration {
		t.Fatalf("expected default expiration, got %v", rt.AccessTokenExpiration)
	}
	if !rt.CreatedAt.Equal(created) {
		t.Fatalf("expected created at %v, got %v", created, rt.CreatedAt)
	}
	if rt.User != owner {
		t.Fatal("expected back-reference to owner")
	}
}

func TestNewRefreshTokenRequiresUser(t *testing.T) {
	if _, err := NewRefreshToken(nil, "client-1", 0, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil user")
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	owner := &User{ID: "user-1"}
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return created }

	rt, err := NewRefreshToken(owner, "client-1", 30*time.Minute, clock, staticID("rt-1"), staticSecret("refresh"))
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	at, err := NewAccessToken(rt, clock, staticID("at-1"), staticSecret("access"))
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}

	if at.ExpiredAt(created.Add(29 * time.Minute)) {
		t.Fatal("expected token valid inside window")
	}
	if at.ExpiredAt(created.Add(30 * time.Minute)) {
		t.Fatal("expected token valid at exact boundary")
	}
	if !at.ExpiredAt(created.Add(30*time.Minute + time.Second)) {
		t.Fatal("expected token expired past window")
	}
}
