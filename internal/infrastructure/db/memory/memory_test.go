package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

func seed(t *testing.T, repo *RequestRepository, n int) {
	t.Helper()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		status := domain.AdminStatusPending
		if i%2 == 1 {
			status = domain.AdminStatusInProgress
		}
		err := repo.Create(context.Background(), &domain.FilingRequest{
			ConfirmationNumber: fmt.Sprintf("TAX-%08X", i),
			OwnerUID:           fmt.Sprintf("u%d", i%3),
			Personal:           domain.PersonalInfo{FullName: fmt.Sprintf("Person %d", i), Email: fmt.Sprintf("p%d@example.com", i)},
			Status:             string(status),
			CreatedAt:          base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRequestRepository_ListPaginatesNewestFirst(t *testing.T) {
	repo := NewRequestRepository()
	seed(t, repo, 25)

	page, total, err := repo.List(context.Background(), ports.ListRequestsFilter{Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 25 || len(page) != 5 {
		t.Fatalf("expected 5 of 25, got %d of %d", len(page), total)
	}
	if page[0].ConfirmationNumber != "TAX-00000004" {
		t.Fatalf("unexpected first item on last page: %s", page[0].ConfirmationNumber)
	}

	empty, _, _ := repo.List(context.Background(), ports.ListRequestsFilter{Page: 9, Limit: 10})
	if len(empty) != 0 {
		t.Fatalf("page past the end should be empty")
	}
}

func TestRequestRepository_ListFilters(t *testing.T) {
	repo := NewRequestRepository()
	seed(t, repo, 10)
	ctx := context.Background()

	byStatus, total, _ := repo.List(ctx, ports.ListRequestsFilter{Status: string(domain.AdminStatusInProgress)})
	if total != 5 || len(byStatus) != 5 {
		t.Fatalf("expected 5 in progress, got %d", total)
	}

	bySearch, total, _ := repo.List(ctx, ports.ListRequestsFilter{Search: "person 7"})
	if total != 1 || bySearch[0].ConfirmationNumber != "TAX-00000007" {
		t.Fatalf("search by name failed: %d", total)
	}

	byOwner, _, _ := repo.List(ctx, ports.ListRequestsFilter{OwnerUID: "u0"})
	for _, r := range byOwner {
		if r.OwnerUID != "u0" {
			t.Fatalf("owner filter leaked %s", r.OwnerUID)
		}
	}
}

func TestRequestRepository_AppendOnly(t *testing.T) {
	repo := NewRequestRepository()
	seed(t, repo, 1)
	ctx := context.Background()
	id := "TAX-00000000"

	got, _ := repo.FindByConfirmation(ctx, id)
	got.StatusHistory = append(got.StatusHistory, domain.StatusHistoryEntry{Status: "tampered"})

	entry := domain.StatusHistoryEntry{Status: string(domain.AdminStatusInProgress), Timestamp: time.Now()}
	if err := repo.AppendStatus(ctx, id, entry.Status, nil, entry); err != nil {
		t.Fatalf("AppendStatus: %v", err)
	}
	fresh, _ := repo.FindByConfirmation(ctx, id)
	if len(fresh.StatusHistory) != 1 || fresh.StatusHistory[0].Status != entry.Status {
		t.Fatalf("unexpected history %+v", fresh.StatusHistory)
	}

	if err := repo.AppendNote(ctx, "TAX-MISSING", domain.AdminNote{Note: "x"}); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestCredentialRepository_EmailIsCaseInsensitive(t *testing.T) {
	repo := NewCredentialRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, &domain.Credential{UID: "1", Email: "Ana@Example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &domain.Credential{UID: "2", Email: "ana@example.com"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	c, err := repo.FindByEmail(ctx, "ANA@example.com")
	if err != nil || c.UID != "1" {
		t.Fatalf("lookup failed: %v", err)
	}
}
