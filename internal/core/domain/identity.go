package domain

import "time"

// Role is the authorization level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the session shape of an authenticated user. It is also the
// record persisted in durable client storage.
type Identity struct {
	UID   string `json:"uid"   bson:"_id"`
	Email string `json:"email" bson:"email"`
	Name  string `json:"name"  bson:"name"`
	Role  Role   `json:"role"  bson:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Credential is an account known to the identity emulator.
type Credential struct {
	UID          string    `bson:"_id"`
	Email        string    `bson:"email"`
	DisplayName  string    `bson:"display_name"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	ProviderID   string    `bson:"provider_id"`
	CreatedAt    time.Time `bson:"created_at"`
}
