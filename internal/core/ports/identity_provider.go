package ports

import "context"

// Sign-in provider identifiers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// Principal is the identity provider's view of the signed-in user.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ProviderID  string `json:"providerId"`
}

// Federated reports whether the principal signed in through an external provider.
func (p *Principal) Federated() bool {
	return p != nil && p.ProviderID != "" && p.ProviderID != ProviderPassword
}

// AuthStateListener receives the current principal, or nil when signed out.
type AuthStateListener func(p *Principal)

// IdentityProvider is the external identity collaborator. Implementations
// invoke listeners once on subscription with the current state and again on
// every change.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Principal, error)
	SignInWithIdp(ctx context.Context, providerID, email, displayName string) (*Principal, error)
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
	SignInMethods(ctx context.Context, email string) ([]string, error)
	IDToken(ctx context.Context) (string, error)
	// OnAuthStateChanged registers fn and returns its unsubscribe handle.
	OnAuthStateChanged(fn AuthStateListener) (unsubscribe func())
}
