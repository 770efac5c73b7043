package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/taxdesk/filing-client/internal/api/metrics"
	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

// TokenIssuer is the iss claim of every ID token.
const TokenIssuer = "taxdesk-devbackend"

const (
	minPasswordLength = 6
	refreshTokenTTL   = 30 * 24 * time.Hour
)

type refreshSession struct {
	uid       string
	email     string
	name      string
	provider  string
	expiresAt time.Time
}

// IdentityService emulates the hosted identity provider and owns backend
// user profiles. Refresh tokens live in process memory.
type IdentityService struct {
	creds     ports.CredentialRepository
	users     ports.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
	admins    map[string]struct{}
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	refresh map[string]refreshSession
}

func NewIdentityService(creds ports.CredentialRepository, users ports.UserRepository, jwtSecret string, tokenTTL time.Duration, adminEmails []string, logger zerolog.Logger) *IdentityService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &IdentityService{
		creds:     creds,
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		admins:    admins,
		logger:    logger,
		now:       time.Now,
		refresh:   make(map[string]refreshSession),
	}
}

// Register creates a password account and its profile.
func (s *IdentityService) Register(ctx context.Context, in ports.Registration) (*domain.Identity, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || len(in.Password) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	cred := &domain.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		ProviderID:   ports.ProviderPassword,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, err
	}

	id := &domain.Identity{UID: cred.UID, Email: email, Name: cred.DisplayName, Role: s.defaultRole(email)}
	if err := s.users.Upsert(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info().Str("uid", id.UID).Str("role", string(id.Role)).Msg("account registered")
	return id, nil
}

func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*ports.TokenGrant, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	cred, err := s.creds.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.SignInsTotal.WithLabelValues(ports.ProviderPassword, "rejected").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if cred.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		metrics.SignInsTotal.WithLabelValues(ports.ProviderPassword, "rejected").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	metrics.SignInsTotal.WithLabelValues(ports.ProviderPassword, "ok").Inc()
	return s.grant(ctx, cred, ports.ProviderPassword)
}

// SignInWithIdp signs in a federated account, creating the credential on
// first use. An email already registered with another provider is rejected
// with domain.ErrAccountExistsWithDifferentCredential.
func (s *IdentityService) SignInWithIdp(ctx context.Context, providerID, email, displayName string) (*ports.TokenGrant, error) {
	email = normalizeEmail(email)
	if providerID == "" || providerID == ports.ProviderPassword || email == "" {
		return nil, domain.ErrInvalidCredentials
	}

	cred, err := s.creds.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if cred.ProviderID != providerID {
			metrics.SignInsTotal.WithLabelValues(providerID, "conflict").Inc()
			return nil, &domain.CredentialConflictError{Email: email, Methods: []string{cred.ProviderID}}
		}
	case errors.Is(err, domain.ErrUserNotFound):
		cred = &domain.Credential{
			UID:         uuid.NewString(),
			Email:       email,
			DisplayName: strings.TrimSpace(displayName),
			ProviderID:  providerID,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.creds.Create(ctx, cred); err != nil {
			return nil, err
		}
		s.logger.Info().Str("uid", cred.UID).Str("provider", providerID).Msg("federated account created")
	default:
		return nil, err
	}

	metrics.SignInsTotal.WithLabelValues(providerID, "ok").Inc()
	return s.grant(ctx, cred, providerID)
}

// SendPasswordReset never reveals whether the email is registered.
func (s *IdentityService) SendPasswordReset(ctx context.Context, email string) error {
	cred, err := s.creds.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	s.logger.Info().Str("uid", cred.UID).Msg("password reset requested")
	return nil
}

func (s *IdentityService) SignInMethods(ctx context.Context, email string) ([]string, error) {
	cred, err := s.creds.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return []string{cred.ProviderID}, nil
}

// Refresh exchanges a live refresh token for a new ID token. The refresh
// token itself is kept.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenGrant, error) {
	s.mu.Lock()
	sess, ok := s.refresh[refreshToken]
	if ok && !s.now().Before(sess.expiresAt) {
		delete(s.refresh, refreshToken)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	email, name := sess.email, sess.name
	if id, err := s.users.FindByUID(ctx, sess.uid); err == nil {
		email, name = id.Email, id.Name
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	idToken, exp, err := s.sign(ctx, sess.uid, email, name, sess.provider)
	if err != nil {
		return nil, err
	}
	return &ports.TokenGrant{
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    exp,
		Principal:    ports.Principal{UID: sess.uid, Email: email, DisplayName: name, ProviderID: sess.provider},
	}, nil
}

func (s *IdentityService) Revoke(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	delete(s.refresh, refreshToken)
	s.mu.Unlock()
	return nil
}

// UpsertProfile creates the profile on first login and refreshes its
// contact fields afterwards. The role is never taken from the caller.
func (s *IdentityService) UpsertProfile(ctx context.Context, in ports.ProfileUpsert) (*domain.Identity, error) {
	if in.UID == "" {
		return nil, domain.ErrUnauthorized
	}
	email := normalizeEmail(in.Email)

	id, err := s.users.FindByUID(ctx, in.UID)
	switch {
	case err == nil:
		if email != "" {
			id.Email = email
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			id.Name = name
		}
	case errors.Is(err, domain.ErrUserNotFound):
		id = &domain.Identity{UID: in.UID, Email: email, Name: strings.TrimSpace(in.Name), Role: s.defaultRole(email)}
	default:
		return nil, err
	}

	if err := s.users.Upsert(ctx, id); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *IdentityService) Profile(ctx context.Context, uid string) (*domain.Identity, error) {
	return s.users.FindByUID(ctx, uid)
}

// RoleOf returns the role carried in ID tokens for uid.
func (s *IdentityService) RoleOf(ctx context.Context, uid, email string) (domain.Role, error) {
	id, err := s.users.FindByUID(ctx, uid)
	if err == nil {
		return id.Role, nil
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return s.defaultRole(email), nil
	}
	return "", err
}

func (s *IdentityService) defaultRole(email string) domain.Role {
	if _, ok := s.admins[normalizeEmail(email)]; ok {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

func (s *IdentityService) grant(ctx context.Context, cred *domain.Credential, provider string) (*ports.TokenGrant, error) {
	idToken, exp, err := s.sign(ctx, cred.UID, cred.Email, cred.DisplayName, provider)
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.refresh[refreshToken] = refreshSession{
		uid:       cred.UID,
		email:     cred.Email,
		name:      cred.DisplayName,
		provider:  provider,
		expiresAt: s.now().Add(refreshTokenTTL),
	}
	s.mu.Unlock()

	return &ports.TokenGrant{
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    exp,
		Principal: ports.Principal{
			UID:         cred.UID,
			Email:       cred.Email,
			DisplayName: cred.DisplayName,
			ProviderID:  provider,
		},
	}, nil
}

func (s *IdentityService) sign(ctx context.Context, uid, email, name, provider string) (string, time.Time, error) {
	role, err := s.RoleOf(ctx, uid, email)
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"sub":      uid,
		"email":    email,
		"name":     name,
		"role":     string(role),
		"provider": provider,
		"iss":      TokenIssuer,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.UTC(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ ports.IdentityService = (*IdentityService)(nil)
