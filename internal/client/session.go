// Package client holds the stateful workflows of the filing client: the
// session holder, request submission, request tracking and the admin console.
// They are wired together by dependency injection; nothing here is global.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/infrastructure/cache"
)

// IdentityKey is where the resolved identity is persisted.
const IdentityKey = "session:identity"

// SessionState is the lifecycle position of a Session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateResolving
	StateAuthenticated
	StateAnonymous
)

func (s SessionState) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// Session holds the current identity. It follows the identity provider and
// resolves each principal into a backend profile.
type Session struct {
	idp      ports.IdentityProvider
	profiles ports.ProfileAPI
	store    ports.KVStore
	cache    *cache.Cache
	log      zerolog.Logger

	// persistMu orders writes of the persisted identity against sign-out.
	persistMu sync.Mutex

	mu          sync.Mutex
	idle        *sync.Cond
	state       SessionState
	current     *domain.Identity
	lastErr     error
	gen         uint64
	inflight    int
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	ready       chan struct{}
	readyOnce   sync.Once
}

// NewSession returns a Session in the uninitialized state.
func NewSession(idp ports.IdentityProvider, profiles ports.ProfileAPI, store ports.KVStore, log zerolog.Logger) *Session {
	s := &Session{
		idp:      idp,
		profiles: profiles,
		store:    store,
		cache:    cache.New(store, cache.WithLogger(log)),
		log:      log.With().Str("component", "session").Logger(),
		ready:    make(chan struct{}),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Start restores the persisted identity optimistically and subscribes to the
// identity provider. Loading stays true until the first resolution. The
// subscription outlives ctx cancellation; release it with Stop.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	persisted := s.loadPersisted(ctx)

	s.mu.Lock()
	if s.state == StateUninitialized {
		s.current = persisted
		s.state = StateResolving
	}
	s.mu.Unlock()

	unsubscribe := s.idp.OnAuthStateChanged(s.onAuthState)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Stop releases the provider subscription and waits for in-flight
// resolutions. It is safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	unsubscribe, cancel := s.unsubscribe, s.cancel
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.settle()
}

// Ready is closed after the first resolution completes.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// State returns the lifecycle position.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading reports whether the identity is not resolved yet.
func (s *Session) Loading() bool {
	st := s.State()
	return st == StateUninitialized || st == StateResolving
}

// Current returns a copy of the identity, or nil when signed out.
func (s *Session) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// IsAdmin reports whether the current identity is an administrator.
func (s *Session) IsAdmin() bool { return s.Current().IsAdmin() }

func (s *Session) onAuthState(p *ports.Principal) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	ctx := s.ctx
	s.inflight++
	s.state = StateResolving
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	go s.resolveAndApply(ctx, gen, p)
}

func (s *Session) resolveAndApply(ctx context.Context, gen uint64, p *ports.Principal) {
	defer func() {
		s.mu.Lock()
		s.inflight--
		if s.inflight == 0 {
			s.idle.Broadcast()
		}
		s.mu.Unlock()
	}()

	id, err := s.resolve(ctx, p)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debug().Uint64("generation", gen).Msg("dropping stale identity resolution")
		return
	}
	prev := s.current
	s.lastErr = err
	if err != nil || id == nil {
		s.current = nil
		s.state = StateAnonymous
	} else {
		s.current = id
		s.state = StateAuthenticated
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("uid", p.UID).Msg("identity resolution failed, signed out locally")
	}
	s.apply(ctx, gen, prev, id)
	s.readyOnce.Do(func() { close(s.ready) })
}

// apply writes the outcome of resolution gen to the store. Nothing is
// written once a newer generation exists, so a resolution that finishes
// after a sign-out cannot bring the persisted identity back.
func (s *Session) apply(ctx context.Context, gen uint64, prev, id *domain.Identity) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		s.log.Debug().Uint64("generation", gen).Msg("skipping persist of stale identity")
		return
	}

	if id == nil || (prev != nil && prev.UID != id.UID) {
		s.clearCache(ctx)
	}
	if id == nil {
		s.clearPersisted(ctx)
		return
	}
	s.persist(ctx, id)
	s.log.Debug().Str("uid", id.UID).Str("role", string(id.Role)).Msg("identity resolved")
}

// clearCache drops cached request lists and details so nothing read under
// one identity is served to the next.
func (s *Session) clearCache(ctx context.Context) {
	for _, prefix := range []string{cache.DetailPrefix, cache.UserListPrefix} {
		if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
			s.log.Warn().Err(err).Str("prefix", prefix).Msg("clear cached requests")
		}
	}
}

// resolve maps a principal to a backend profile. A persisted copy with the
// same uid is adopted without a network call.
func (s *Session) resolve(ctx context.Context, p *ports.Principal) (*domain.Identity, error) {
	if p == nil {
		return nil, nil
	}
	if persisted := s.loadPersisted(ctx); persisted != nil && persisted.UID == p.UID {
		return persisted, nil
	}

	id, err := s.profiles.GetUser(ctx, p.UID)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, domain.ErrNotFound) && p.Federated() {
		return s.profiles.LoginUser(ctx, ports.ProfileUpsert{
			UID:        p.UID,
			Email:      p.Email,
			Name:       p.DisplayName,
			ProviderID: p.ProviderID,
		})
	}
	return nil, err
}

// settle waits until no resolution is in flight.
func (s *Session) settle() {
	s.mu.Lock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// settled returns the identity once pending resolutions finish.
func (s *Session) settled() (*domain.Identity, error) {
	s.settle()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		if s.lastErr != nil {
			return nil, s.lastErr
		}
		return nil, domain.ErrUnauthorized
	}
	c := *s.current
	return &c, nil
}

// SignIn authenticates with email and password and returns the resolved identity.
func (s *Session) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	if _, err := s.idp.SignInWithPassword(ctx, email, password); err != nil {
		return nil, err
	}
	return s.settled()
}

// SignInWithGoogle performs a federated sign-in. When the email already
// belongs to another sign-in method the returned error lists those methods.
func (s *Session) SignInWithGoogle(ctx context.Context, email, displayName string) (*domain.Identity, error) {
	_, err := s.idp.SignInWithIdp(ctx, ports.ProviderGoogle, email, displayName)
	if err != nil {
		var conflict *domain.CredentialConflictError
		if errors.As(err, &conflict) {
			methods, mErr := s.idp.SignInMethods(ctx, email)
			if mErr != nil {
				s.log.Warn().Err(mErr).Msg("fetch sign-in methods")
			}
			return nil, &domain.CredentialConflictError{Email: email, Methods: methods}
		}
		return nil, err
	}
	return s.settled()
}

// Register creates the account and profile, then signs in.
func (s *Session) Register(ctx context.Context, name, email, password string) (*domain.Identity, error) {
	if _, err := s.profiles.RegisterUser(ctx, ports.Registration{Name: name, Email: email, Password: password}); err != nil {
		return nil, err
	}
	return s.SignIn(ctx, email, password)
}

// ResetPassword asks the provider to send a reset message.
func (s *Session) ResetPassword(ctx context.Context, email string) error {
	return s.idp.SendPasswordReset(ctx, email)
}

// Logout signs out of the provider and clears the local identity.
func (s *Session) Logout(ctx context.Context) error {
	s.signOutLocal(ctx)
	err := s.idp.SignOut(ctx)
	s.settle()
	return err
}

// Expire ends a session the backend no longer accepts.
func (s *Session) Expire(ctx context.Context) {
	s.log.Warn().Msg("session expired")
	s.signOutLocal(ctx)
	if err := s.idp.SignOut(ctx); err != nil {
		s.log.Warn().Err(err).Msg("sign out after expiry")
	}
	s.settle()
}

// Guard converts an authorization failure into ErrSessionExpired after
// expiring the session. Other errors are returned unchanged.
func (s *Session) Guard(ctx context.Context, err error) error {
	if err == nil || !errors.Is(err, domain.ErrUnauthorized) {
		return err
	}
	s.Expire(ctx)
	return domain.ErrSessionExpired
}

func (s *Session) signOutLocal(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	s.current = nil
	s.lastErr = nil
	s.state = StateAnonymous
	s.mu.Unlock()

	s.persistMu.Lock()
	s.clearPersisted(ctx)
	s.clearCache(ctx)
	s.persistMu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Session) loadPersisted(ctx context.Context) *domain.Identity {
	raw, err := s.store.Get(ctx, IdentityKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.log.Warn().Err(err).Msg("read persisted identity")
		}
		return nil
	}
	var id domain.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil || id.UID == "" {
		s.log.Warn().Err(err).Msg("discarding unreadable persisted identity")
		s.clearPersisted(ctx)
		return nil
	}
	return &id
}

func (s *Session) persist(ctx context.Context, id *domain.Identity) {
	raw, err := json.Marshal(id)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, IdentityKey, string(raw)); err != nil {
		s.log.Warn().Err(err).Msg("persist identity")
	}
}

func (s *Session) clearPersisted(ctx context.Context) {
	if err := s.store.Delete(ctx, IdentityKey); err != nil {
		s.log.Warn().Err(err).Msg("clear persisted identity")
	}
}
