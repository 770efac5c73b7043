package client

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/infrastructure/cache"
)

func TestTracker_ListUsesCache(t *testing.T) {
	f := newFixture(t)
	me := f.signedIn(t, "ana@example.com", domain.RoleUser)
	f.backend.requests["TAX-1"] = &domain.FilingRequest{ConfirmationNumber: "TAX-1", OwnerUID: me.UID, Status: string(domain.StatusInReview)}
	tr := NewTracker(f.session, f.backend, f.cache, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := tr.ListMine(ctx)
		if err != nil {
			t.Fatalf("ListMine: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 request, got %d", len(list))
		}
	}
	if f.backend.listCalls != 1 {
		t.Fatalf("expected one backend call, got %d", f.backend.listCalls)
	}

	if err := tr.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.ListMine(ctx); err != nil {
		t.Fatal(err)
	}
	if f.backend.listCalls != 2 {
		t.Fatalf("refresh should force a reload")
	}
}

func TestTracker_NotFoundStates(t *testing.T) {
	f := newFixture(t)
	f.signedIn(t, "ana@example.com", domain.RoleUser)
	tr := NewTracker(f.session, f.backend, f.cache, zerolog.Nop())

	list, err := tr.ListMine(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("404 list should be empty, got %v %v", list, err)
	}
	_, err = tr.Get(context.Background(), "TAX-MISSING")
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestTracker_DetailCached(t *testing.T) {
	f := newFixture(t)
	f.signedIn(t, "ana@example.com", domain.RoleUser)
	f.backend.requests["TAX-2"] = &domain.FilingRequest{ConfirmationNumber: "TAX-2"}
	tr := NewTracker(f.session, f.backend, f.cache, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := tr.Get(context.Background(), "TAX-2"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if f.backend.getCalls != 1 {
		t.Fatalf("expected one backend call, got %d", f.backend.getCalls)
	}
}

func TestTracker_Track(t *testing.T) {
	tr := NewTracker(nil, nil, nil, zerolog.Nop())

	got := tr.Track(&domain.FilingRequest{Status: string(domain.StatusCompleted)})
	if got.Percent() != 100 || got.Step != 8 || !got.Known {
		t.Fatalf("completed should be 100%%: %+v", got)
	}
	got = tr.Track(&domain.FilingRequest{Status: string(domain.StatusInReview)})
	if got.Percent() != 38 || got.Step != 3 || got.Total != 8 {
		t.Fatalf("unexpected tracking for in review: %+v", got)
	}
	got = tr.Track(&domain.FilingRequest{Status: "Archivada"})
	if got.Known || got.Progress != 0 || got.Step != 0 {
		t.Fatalf("unknown status should be 0%%: %+v", got)
	}
}

func TestTracker_DetailUnavailableAfterLogout(t *testing.T) {
	f := newFixture(t)
	f.signedIn(t, "ana@example.com", domain.RoleUser)
	f.backend.requests["TAX-2"] = &domain.FilingRequest{ConfirmationNumber: "TAX-2"}
	tr := NewTracker(f.session, f.backend, f.cache, zerolog.Nop())
	ctx := context.Background()

	if _, err := tr.Get(ctx, "TAX-2"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := f.session.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := tr.Get(ctx, "TAX-2"); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after logout, got %v", err)
	}
	if _, err := f.store.Get(ctx, cache.DetailKey("TAX-2")); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("cached detail should be dropped on logout, got %v", err)
	}
	if f.backend.getCalls != 1 {
		t.Fatalf("signed-out Get must not reach the backend, got %d calls", f.backend.getCalls)
	}
}

func TestTracker_CacheDroppedWhenIdentityChanges(t *testing.T) {
	f := newFixture(t)
	ana := f.signedIn(t, "ana@example.com", domain.RoleUser)
	f.backend.requests["TAX-3"] = &domain.FilingRequest{ConfirmationNumber: "TAX-3", OwnerUID: ana.UID}
	tr := NewTracker(f.session, f.backend, f.cache, zerolog.Nop())
	ctx := context.Background()

	if _, err := tr.ListMine(ctx); err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if _, err := tr.Get(ctx, "TAX-3"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	f.idp.passwords["bo@example.com"] = "secret"
	f.backend.users["uid-bo@example.com"] = &domain.Identity{UID: "uid-bo@example.com", Email: "bo@example.com", Role: domain.RoleUser}
	if _, err := f.session.SignIn(ctx, "bo@example.com", "secret"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	for _, key := range []string{cache.DetailKey("TAX-3"), cache.UserListKey(ana.UID)} {
		if _, err := f.store.Get(ctx, key); !errors.Is(err, domain.ErrKeyNotFound) {
			t.Fatalf("%s should be dropped when another user signs in, got %v", key, err)
		}
	}
}
