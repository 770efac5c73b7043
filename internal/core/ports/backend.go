package ports

import (
	"context"
	"io"

	"github.com/taxdesk/filing-client/internal/core/domain"
)

// Registration carries the fields of POST /users/register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpsert carries the fields of POST /users/login.
type ProfileUpsert struct {
	UID        string `json:"uid"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	ProviderID string `json:"providerId"`
}

// Upload is one file sent with a new filing request.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// NewFilingRequest is the multipart payload of POST /requests.
type NewFilingRequest struct {
	OwnerUID      string
	Personal      domain.PersonalInfo
	Banking       domain.BankingInfo
	PaymentMethod string
	Plan          domain.Plan
	Documents     []Upload
}

// Receipt is returned after a successful submission.
type Receipt struct {
	ConfirmationNumber string `json:"confirmationNumber"`
	Status             string `json:"status"`
}

// AdminQuery is the server-side query behind the admin request table.
// An empty Status means no filter.
type AdminQuery struct {
	Page   int
	Search string
	Status domain.AdminStatus
}

// AdminPage is one page of the admin request table together with the
// authoritative status options and per-status counts.
type AdminPage struct {
	Requests   []domain.FilingRequest `json:"requests"`
	Page       int                    `json:"currentPage"`
	TotalPages int                    `json:"totalPages"`
	Total      int64                  `json:"totalRequests"`
	Statuses   []domain.AdminStatus   `json:"statuses"`
	Counts     map[string]int64       `json:"statusCounts"`
}

// CountsConsistent reports whether the per-status counts sum to the
// unfiltered total.
func (p *AdminPage) CountsConsistent() bool {
	all, ok := p.Counts[domain.CountAll]
	if !ok {
		return false
	}
	var sum int64
	for k, n := range p.Counts {
		if k != domain.CountAll {
			sum += n
		}
	}
	return sum == all
}

// MonthlyCount is the number of requests created in one calendar month.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// Statistics is the aggregate view for administrators.
type Statistics struct {
	TotalRequests  int64            `json:"totalRequests"`
	ByStatus       map[string]int64 `json:"byStatus"`
	ByServiceLevel map[string]int64 `json:"byServiceLevel"`
	TotalRevenue   float64          `json:"totalRevenue"`
	Monthly        []MonthlyCount   `json:"monthly"`
}

// ProfileAPI is the user-profile part of the backend.
type ProfileAPI interface {
	RegisterUser(ctx context.Context, in Registration) (*domain.Identity, error)
	LoginUser(ctx context.Context, in ProfileUpsert) (*domain.Identity, error)
	GetUser(ctx context.Context, uid string) (*domain.Identity, error)
}

// RequestAPI is the owner-facing request part of the backend.
type RequestAPI interface {
	ListUserRequests(ctx context.Context, uid string) ([]domain.FilingRequest, error)
	GetRequest(ctx context.Context, id string) (*domain.FilingRequest, error)
	CreateRequest(ctx context.Context, in NewFilingRequest) (*Receipt, error)
}

// AdminAPI is the administrative part of the backend.
type AdminAPI interface {
	ListAdminRequests(ctx context.Context, q AdminQuery) (*AdminPage, error)
	UpdateRequestStatus(ctx context.Context, id string, u domain.StatusUpdate) (*domain.FilingRequest, error)
	AddRequestNote(ctx context.Context, id, note string) (*domain.FilingRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	Statistics(ctx context.Context) (*Statistics, error)
	VerifyAdmin(ctx context.Context) error
}
