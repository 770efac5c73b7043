package ports

import (
	"context"
	"time"

	"github.com/taxdesk/filing-client/internal/core/domain"
)

// ListRequestsFilter carries all query parameters for listing requests.
type ListRequestsFilter struct {
	OwnerUID string // empty = all owners (admin)
	Status   string // optional exact status match
	Search   string // optional: partial match on confirmation number, name or email
	Page     int    // 1-based
	Limit    int
}

// RequestRepository defines persistence operations for filing requests.
// History and notes only ever grow through the Append* methods.
type RequestRepository interface {
	Create(ctx context.Context, r *domain.FilingRequest) error
	FindByConfirmation(ctx context.Context, id string) (*domain.FilingRequest, error)
	// List returns a page of requests matching filter and the matching total.
	List(ctx context.Context, filter ListRequestsFilter) ([]*domain.FilingRequest, int64, error)
	// CountByStatus counts all requests grouped by status, ignoring filters.
	CountByStatus(ctx context.Context) (map[string]int64, error)
	AppendStatus(ctx context.Context, id string, status string, paymentDate *time.Time, entry domain.StatusHistoryEntry) error
	AppendNote(ctx context.Context, id string, note domain.AdminNote) error
	Delete(ctx context.Context, id string) error
	// All returns every request; used for statistics.
	All(ctx context.Context) ([]*domain.FilingRequest, error)
}

// UserRepository stores backend user profiles.
type UserRepository interface {
	FindByUID(ctx context.Context, uid string) (*domain.Identity, error)
	Upsert(ctx context.Context, id *domain.Identity) error
}

// CredentialRepository stores identity emulator accounts.
type CredentialRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	Create(ctx context.Context, c *domain.Credential) error
}
