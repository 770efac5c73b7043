package ports

import (
	"context"
	"time"

	"github.com/taxdesk/filing-client/internal/core/domain"
)

// Actor is the authenticated caller of a backend operation.
type Actor struct {
	UID  string
	Role domain.Role
}

// CanAccess reports whether the actor may see data owned by uid.
func (a Actor) CanAccess(uid string) bool {
	return a.Role == domain.RoleAdmin || (a.UID != "" && a.UID == uid)
}

// CreateFilingInput is the DTO passed from the transport layer to FilingService.
type CreateFilingInput struct {
	OwnerUID      string
	Personal      domain.PersonalInfo
	Banking       domain.BankingInfo
	PaymentMethod string
	ServiceLevel  domain.ServiceLevel
	Price         float64
	Documents     []domain.DocumentRef
}

// FilingService defines the request use cases served by the development backend.
type FilingService interface {
	Create(ctx context.Context, in CreateFilingInput) (*domain.FilingRequest, error)
	Get(ctx context.Context, actor Actor, id string) (*domain.FilingRequest, error)
	ListForOwner(ctx context.Context, actor Actor, uid string) ([]*domain.FilingRequest, error)
	ListAdmin(ctx context.Context, q AdminQuery) (*AdminPage, error)
	UpdateStatus(ctx context.Context, id string, u domain.StatusUpdate) (*domain.FilingRequest, error)
	AddNote(ctx context.Context, id, note string) (*domain.FilingRequest, error)
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context) (*Statistics, error)
}

// TokenGrant is issued by the identity emulator on sign-in or refresh.
type TokenGrant struct {
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Principal    Principal `json:"principal"`
}

// IdentityService defines the identity emulator and profile use cases.
type IdentityService interface {
	Register(ctx context.Context, in Registration) (*domain.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*TokenGrant, error)
	SignInWithIdp(ctx context.Context, providerID, email, displayName string) (*TokenGrant, error)
	SendPasswordReset(ctx context.Context, email string) error
	SignInMethods(ctx context.Context, email string) ([]string, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
	Revoke(ctx context.Context, refreshToken string) error
	UpsertProfile(ctx context.Context, in ProfileUpsert) (*domain.Identity, error)
	Profile(ctx context.Context, uid string) (*domain.Identity, error)
}
