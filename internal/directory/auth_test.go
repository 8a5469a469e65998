package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fakeDirectory struct {
	byCreds map[string]*Principal // keyed by username for Plain creds
	byName  map[string]*Principal
	err     error
}

func (f *fakeDirectory) QueryByCredentials(ctx context.Context, creds Credentials, returnMemberOf bool) (*Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	plain, ok := creds.(PlainCredentials)
	if !ok {
		return nil, nil
	}
	p, ok := f.byCreds[plain.Username]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (f *fakeDirectory) QueryByName(ctx context.Context, name string, returnMemberOf bool) (*Principal, error) {
	if p, ok := f.byName[name]; ok {
		return p, nil
	}
	return nil, nil
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func TestAuthenticatePrimarySuccess(t *testing.T) {
	dir := &fakeDirectory{byCreds: map[string]*Principal{
		"alice": {Name: "alice"},
	}}
	c := NewCoordinator(dir, nil, nil, false, nil)

	outcome, err := c.Authenticate(context.Background(), PlainCredentials{Username: "alice", Secret: "x"}, "10.0.0.1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeSuccess || outcome.Principal.Name != "alice" {
		t.Fatalf("expected success for alice, got %#v", outcome)
	}
}

// TestMasterUserAuthority: auth(admin_pw, "user%admin") succeeds
// iff admin_pw matches the fallback admin and user exists; on user miss the
// result is Failure, not Banned.
func TestMasterUserAuthority(t *testing.T) {
	hash := mustHash(t, "sekret")
	fallback := &FallbackAdminConfig{Name: "root", PasswordHash: hash, Master: true}

	t.Run("user exists", func(t *testing.T) {
		dir := &fakeDirectory{byCreds: map[string]*Principal{}, byName: map[string]*Principal{"alice": {Name: "alice"}}}
		c := NewCoordinator(dir, fallback, nil, false, nil)
		outcome, err := c.Authenticate(context.Background(), PlainCredentials{Username: "alice%root", Secret: "sekret"}, "10.0.0.1", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != OutcomeSuccess || outcome.Principal.Name != "alice" {
			t.Fatalf("expected success for alice, got %#v", outcome)
		}
	})

	t.Run("user missing", func(t *testing.T) {
		dir := &fakeDirectory{byCreds: map[string]*Principal{}, byName: map[string]*Principal{}}
		c := NewCoordinator(dir, fallback, nil, false, nil)
		outcome, err := c.Authenticate(context.Background(), PlainCredentials{Username: "bob%root", Secret: "sekret"}, "10.0.0.1", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != OutcomeFailure {
			t.Fatalf("expected Failure (not Banned) on master-user miss, got %#v", outcome)
		}
	})

	t.Run("wrong admin password", func(t *testing.T) {
		dir := &fakeDirectory{byCreds: map[string]*Principal{}, byName: map[string]*Principal{"alice": {Name: "alice"}}}
		c := NewCoordinator(dir, fallback, nil, false, nil)
		outcome, _ := c.Authenticate(context.Background(), PlainCredentials{Username: "alice%root", Secret: "wrong"}, "10.0.0.1", false)
		if outcome.Kind != OutcomeFailure {
			t.Fatalf("expected Failure for wrong admin password, got %#v", outcome)
		}
	})
}

func TestFallbackAdminWithoutMasterSplit(t *testing.T) {
	hash := mustHash(t, "sekret")
	fallback := &FallbackAdminConfig{Name: "root", PasswordHash: hash, Master: false}
	dir := &fakeDirectory{byCreds: map[string]*Principal{}}
	c := NewCoordinator(dir, fallback, nil, false, nil)

	outcome, err := c.Authenticate(context.Background(), PlainCredentials{Username: "root", Secret: "sekret"}, "10.0.0.1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeSuccess || outcome.Principal.Name != "root" {
		t.Fatalf("expected fallback admin success, got %#v", outcome)
	}
}

func TestAuthenticateSurfacesDirectoryError(t *testing.T) {
	wantErr := errors.New("directory unreachable")
	dir := &fakeDirectory{err: wantErr}
	c := NewCoordinator(dir, nil, nil, false, nil)

	_, err := c.Authenticate(context.Background(), PlainCredentials{Username: "alice", Secret: "x"}, "10.0.0.1", false)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected directory error to surface, got %v", err)
	}
}

// TestFail2BanLatch: repeated failures latch a Banned result once the
// threshold is reached, and the latch holds even when the credentials are
// subsequently correct.
func TestFail2BanLatch(t *testing.T) {
	dir := &fakeDirectory{byCreds: map[string]*Principal{"alice": {Name: "alice"}}}
	ban := NewFail2Ban(4, time.Hour, nil)
	c := NewCoordinator(dir, nil, ban, true, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		outcome, err := c.Authenticate(ctx, PlainCredentials{Username: "bob", Secret: "wrong"}, "10.0.0.9", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != OutcomeFailure {
			t.Fatalf("attempt %d: expected Failure below threshold, got %#v", i, outcome)
		}
	}

	outcome, err := c.Authenticate(ctx, PlainCredentials{Username: "bob", Secret: "wrong"}, "10.0.0.9", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeBanned {
		t.Fatalf("expected Banned on the threshold-crossing attempt, got %#v", outcome)
	}

	// Correct credentials do not lift the latch; only window expiry does.
	outcome, err = c.Authenticate(ctx, PlainCredentials{Username: "alice", Secret: "x"}, "10.0.0.9", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeBanned {
		t.Fatalf("expected Banned despite correct credentials, got %#v", outcome)
	}
}

// TestFail2BanSuccessNeverIncrementsCounter: a successful
// authentication never increments the ban counter for (remote_ip, login).
func TestFail2BanSuccessNeverIncrementsCounter(t *testing.T) {
	dir := &fakeDirectory{byCreds: map[string]*Principal{"alice": {Name: "alice"}}}
	ban := NewFail2Ban(1, time.Hour, nil)
	c := NewCoordinator(dir, nil, ban, true, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		outcome, err := c.Authenticate(ctx, PlainCredentials{Username: "alice", Secret: "x"}, "10.0.0.10", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != OutcomeSuccess {
			t.Fatalf("attempt %d: expected repeated success, got %#v", i, outcome)
		}
	}

	banned, err := ban.IsBanned(ctx, "10.0.0.10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banned {
		t.Fatalf("successful auth must never be counted toward a ban")
	}
}
