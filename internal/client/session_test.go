package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("session never became ready")
	}
}

func persistIdentity(t *testing.T, f *fixture, id domain.Identity) {
	t.Helper()
	raw, _ := json.Marshal(id)
	if err := f.store.Set(context.Background(), IdentityKey, string(raw)); err != nil {
		t.Fatal(err)
	}
}

func TestSession_AnonymousStart(t *testing.T) {
	f := newFixture(t)
	if f.session.State() != StateUninitialized || !f.session.Loading() {
		t.Fatalf("new session should be uninitialized and loading")
	}
	f.session.Start(context.Background())
	waitReady(t, f.session)

	f.session.settle()
	if f.session.State() != StateAnonymous || f.session.Loading() {
		t.Fatalf("expected anonymous, got %s", f.session.State())
	}
	if f.session.Current() != nil || f.session.IsAdmin() {
		t.Fatalf("anonymous session should have no identity")
	}
}

func TestSession_OptimisticRestoreThenResolve(t *testing.T) {
	f := newFixture(t)
	persistIdentity(t, f, domain.Identity{UID: "uid-old", Email: "old@example.com", Role: domain.RoleUser})
	f.idp.current = &ports.Principal{UID: "uid-new", Email: "new@example.com", ProviderID: ports.ProviderPassword}
	f.backend.users["uid-new"] = &domain.Identity{UID: "uid-new", Email: "new@example.com", Role: domain.RoleAdmin}

	release := make(chan struct{})
	f.backend.getUserHook = func(string) { <-release }

	f.session.Start(context.Background())
	if cur := f.session.Current(); cur == nil || cur.UID != "uid-old" {
		t.Fatalf("expected optimistic persisted identity, got %+v", cur)
	}
	if !f.session.Loading() {
		t.Fatalf("loading must stay true until resolution")
	}

	close(release)
	waitReady(t, f.session)
	f.session.settle()
	if cur := f.session.Current(); cur == nil || cur.UID != "uid-new" || !f.session.IsAdmin() {
		t.Fatalf("expected resolved admin uid-new, got %+v", cur)
	}

	raw, err := f.store.Get(context.Background(), IdentityKey)
	if err != nil {
		t.Fatalf("resolved identity not persisted: %v", err)
	}
	var stored domain.Identity
	_ = json.Unmarshal([]byte(raw), &stored)
	if stored.UID != "uid-new" || stored.Role != domain.RoleAdmin {
		t.Fatalf("unexpected persisted identity %+v", stored)
	}
}

func TestSession_AdoptsMatchingPersistedCopy(t *testing.T) {
	f := newFixture(t)
	persistIdentity(t, f, domain.Identity{UID: "uid-a", Email: "a@example.com", Role: domain.RoleUser})
	f.idp.current = &ports.Principal{UID: "uid-a", ProviderID: ports.ProviderPassword}
	f.backend.getUserErr = errors.New("must not be called")

	f.session.Start(context.Background())
	waitReady(t, f.session)
	f.session.settle()
	if cur := f.session.Current(); cur == nil || cur.UID != "uid-a" {
		t.Fatalf("expected persisted identity adopted, got %+v", cur)
	}
}

func TestSession_FederatedFirstSignInUpsertsProfile(t *testing.T) {
	f := newFixture(t)
	f.session.Start(context.Background())
	waitReady(t, f.session)

	id, err := f.session.SignInWithGoogle(context.Background(), "g@example.com", "Gabriela")
	if err != nil {
		t.Fatalf("SignInWithGoogle: %v", err)
	}
	if id.UID != "uid-g@example.com" || id.Name != "Gabriela" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if len(f.backend.logins) != 1 || f.backend.logins[0].ProviderID != ports.ProviderGoogle {
		t.Fatalf("expected one profile upsert, got %+v", f.backend.logins)
	}
}

func TestSession_FederatedConflictListsMethods(t *testing.T) {
	f := newFixture(t)
	f.idp.conflicts["ana@example.com"] = []string{"password"}
	f.session.Start(context.Background())
	waitReady(t, f.session)

	_, err := f.session.SignInWithGoogle(context.Background(), "ana@example.com", "Ana")
	var conflict *domain.CredentialConflictError
	if !errors.As(err, &conflict) || len(conflict.Methods) != 1 || conflict.Methods[0] != "password" {
		t.Fatalf("expected conflict with methods, got %v", err)
	}
	if !errors.Is(err, domain.ErrAccountExistsWithDifferentCredential) {
		t.Fatalf("conflict should match the sentinel")
	}
}

func TestSession_PasswordPrincipalWithoutProfileFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.idp.passwords["p@example.com"] = "secret"
	f.session.Start(context.Background())
	waitReady(t, f.session)

	_, err := f.session.SignIn(context.Background(), "p@example.com", "secret")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.session.Current() != nil || f.session.State() != StateAnonymous {
		t.Fatalf("failed resolution must leave the session anonymous")
	}
	if len(f.backend.logins) != 0 {
		t.Fatalf("password principals must not be upserted")
	}
}

func TestSession_ResolutionErrorClearsPersistedCopy(t *testing.T) {
	f := newFixture(t)
	persistIdentity(t, f, domain.Identity{UID: "uid-x"})
	f.idp.current = &ports.Principal{UID: "uid-y", ProviderID: ports.ProviderPassword}
	f.backend.getUserErr = &domain.APIError{Status: 0, Message: domain.NetworkMessage}

	f.session.Start(context.Background())
	waitReady(t, f.session)
	f.session.settle()

	if f.session.Current() != nil {
		t.Fatalf("expected fail-closed session")
	}
	if _, err := f.store.Get(context.Background(), IdentityKey); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("persisted copy should be cleared, got %v", err)
	}
}

func TestSession_StaleResolutionDropped(t *testing.T) {
	f := newFixture(t)
	f.backend.users["uid-a"] = &domain.Identity{UID: "uid-a"}
	f.backend.users["uid-b"] = &domain.Identity{UID: "uid-b"}
	release := make(chan struct{})
	f.backend.getUserHook = func(uid string) {
		if uid == "uid-a" {
			<-release
		}
	}

	f.session.Start(context.Background())
	waitReady(t, f.session)

	f.idp.emit(&ports.Principal{UID: "uid-a"})
	f.idp.emit(&ports.Principal{UID: "uid-b"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if cur := f.session.Current(); cur != nil && cur.UID == "uid-b" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("newer principal never resolved")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	f.session.settle()

	if cur := f.session.Current(); cur == nil || cur.UID != "uid-b" {
		t.Fatalf("stale resolution overwrote the session: %+v", cur)
	}
}

func TestSession_GuardExpiresOnUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.signedIn(t, "u@example.com", domain.RoleUser)

	if err := f.session.Guard(context.Background(), errors.New("boom")); err == nil || errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("unrelated errors pass through, got %v", err)
	}
	err := f.session.Guard(context.Background(), &domain.APIError{Status: 403, Message: "forbidden"})
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if f.session.Current() != nil || f.idp.signOuts != 1 {
		t.Fatalf("session should be cleared and signed out")
	}
}

func TestSession_LogoutAndStop(t *testing.T) {
	f := newFixture(t)
	f.signedIn(t, "u@example.com", domain.RoleUser)

	if err := f.session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if f.session.Current() != nil {
		t.Fatalf("logout should clear the identity")
	}
	if _, err := f.store.Get(context.Background(), IdentityKey); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("logout should clear the persisted copy")
	}

	f.session.Stop()
	f.session.Stop()
	if n := f.idp.listenerCount(); n != 0 {
		t.Fatalf("Stop must release the subscription, %d listeners left", n)
	}
}

func TestSession_RegisterSignsIn(t *testing.T) {
	f := newFixture(t)
	f.idp.passwords["new@example.com"] = "pw123456"
	f.session.Start(context.Background())
	waitReady(t, f.session)

	id, err := f.session.Register(context.Background(), "New User", "new@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id.Email != "new@example.com" || f.session.State() != StateAuthenticated {
		t.Fatalf("unexpected state after register: %+v %s", id, f.session.State())
	}
}

func TestSession_ResolutionFinishingAfterLogoutDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	f.backend.users["uid-a"] = &domain.Identity{UID: "uid-a"}
	release := make(chan struct{})
	f.backend.getUserHook = func(uid string) {
		if uid == "uid-a" {
			<-release
		}
	}

	f.session.Start(context.Background())
	waitReady(t, f.session)
	f.idp.emit(&ports.Principal{UID: "uid-a"})

	f.session.signOutLocal(context.Background())
	close(release)
	f.session.settle()

	if f.session.Current() != nil {
		t.Fatalf("resolution finishing after sign-out restored the session")
	}
	if _, err := f.store.Get(context.Background(), IdentityKey); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("stale resolution rewrote the persisted identity, got %v", err)
	}
}
