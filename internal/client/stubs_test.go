package client

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/infrastructure/cache"
	"github.com/taxdesk/filing-client/internal/infrastructure/storage"
)

// ---------------------------------------------------------------------------
// Identity provider stub
// ---------------------------------------------------------------------------

type stubIdentity struct {
	mu          sync.Mutex
	current     *ports.Principal
	listeners   map[int]ports.AuthStateListener
	next        int
	passwords   map[string]string
	conflicts   map[string][]string
	signOuts    int
	resetEmails []string
}

func newStubIdentity() *stubIdentity {
	return &stubIdentity{
		listeners: map[int]ports.AuthStateListener{},
		passwords: map[string]string{},
		conflicts: map[string][]string{},
	}
}

func (s *stubIdentity) emit(p *ports.Principal) {
	s.mu.Lock()
	s.current = p
	fns := make([]ports.AuthStateListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (s *stubIdentity) SignInWithPassword(_ context.Context, email, password string) (*ports.Principal, error) {
	s.mu.Lock()
	want, ok := s.passwords[email]
	s.mu.Unlock()
	if !ok || want != password {
		return nil, domain.ErrInvalidCredentials
	}
	p := &ports.Principal{UID: "uid-" + email, Email: email, ProviderID: ports.ProviderPassword}
	s.emit(p)
	return p, nil
}

func (s *stubIdentity) SignInWithIdp(_ context.Context, providerID, email, name string) (*ports.Principal, error) {
	if _, ok := s.conflicts[email]; ok {
		return nil, &domain.CredentialConflictError{Email: email}
	}
	p := &ports.Principal{UID: "uid-" + email, Email: email, DisplayName: name, ProviderID: providerID}
	s.emit(p)
	return p, nil
}

func (s *stubIdentity) SendPasswordReset(_ context.Context, email string) error {
	s.resetEmails = append(s.resetEmails, email)
	return nil
}

func (s *stubIdentity) SignOut(context.Context) error {
	s.mu.Lock()
	s.signOuts++
	s.mu.Unlock()
	s.emit(nil)
	return nil
}

func (s *stubIdentity) SignInMethods(_ context.Context, email string) ([]string, error) {
	return s.conflicts[email], nil
}

func (s *stubIdentity) IDToken(context.Context) (string, error) { return "token", nil }

func (s *stubIdentity) OnAuthStateChanged(fn ports.AuthStateListener) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	p := s.current
	s.mu.Unlock()
	fn(p)
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *stubIdentity) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// ---------------------------------------------------------------------------
// Backend stub
// ---------------------------------------------------------------------------

type stubBackend struct {
	mu sync.Mutex

	users       map[string]*domain.Identity
	getUserErr  error
	getUserHook func(uid string)
	logins      []ports.ProfileUpsert

	requests   map[string]*domain.FilingRequest
	listCalls  int
	getCalls   int
	created    []ports.NewFilingRequest
	createErr  error
	adminErr   error
	adminCalls []ports.AdminQuery
	adminHook  func(q ports.AdminQuery)
	updates    int
	notes      int
	deleted    []string
	verifyErr  error
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		users:    map[string]*domain.Identity{},
		requests: map[string]*domain.FilingRequest{},
	}
}

func (b *stubBackend) RegisterUser(_ context.Context, in ports.Registration) (*domain.Identity, error) {
	id := &domain.Identity{UID: "uid-" + in.Email, Email: in.Email, Name: in.Name, Role: domain.RoleUser}
	b.mu.Lock()
	b.users[id.UID] = id
	b.mu.Unlock()
	return id, nil
}

func (b *stubBackend) LoginUser(_ context.Context, in ports.ProfileUpsert) (*domain.Identity, error) {
	id := &domain.Identity{UID: in.UID, Email: in.Email, Name: in.Name, Role: domain.RoleUser}
	b.mu.Lock()
	b.logins = append(b.logins, in)
	b.users[id.UID] = id
	b.mu.Unlock()
	return id, nil
}

func (b *stubBackend) GetUser(_ context.Context, uid string) (*domain.Identity, error) {
	if b.getUserHook != nil {
		b.getUserHook(uid)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getUserErr != nil {
		return nil, b.getUserErr
	}
	id, ok := b.users[uid]
	if !ok {
		return nil, &domain.APIError{Status: 404, Message: "user not found"}
	}
	c := *id
	return &c, nil
}

func (b *stubBackend) ListUserRequests(_ context.Context, uid string) ([]domain.FilingRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	var out []domain.FilingRequest
	for _, r := range b.requests {
		if r.OwnerUID == uid {
			out = append(out, *r)
		}
	}
	if len(out) == 0 {
		return nil, &domain.APIError{Status: 404, Message: "no requests"}
	}
	return out, nil
}

func (b *stubBackend) GetRequest(_ context.Context, id string) (*domain.FilingRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getCalls++
	r, ok := b.requests[id]
	if !ok {
		return nil, &domain.APIError{Status: 404, Message: "filing request not found"}
	}
	c := *r
	return &c, nil
}

func (b *stubBackend) CreateRequest(_ context.Context, in ports.NewFilingRequest) (*ports.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, in)
	if b.createErr != nil {
		return nil, b.createErr
	}
	id := "TAX-0000000A"
	b.requests[id] = &domain.FilingRequest{ConfirmationNumber: id, OwnerUID: in.OwnerUID, Status: string(domain.AdminStatusPending)}
	return &ports.Receipt{ConfirmationNumber: id, Status: string(domain.AdminStatusPending)}, nil
}

func (b *stubBackend) ListAdminRequests(_ context.Context, q ports.AdminQuery) (*ports.AdminPage, error) {
	if b.adminHook != nil {
		b.adminHook(q)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adminCalls = append(b.adminCalls, q)
	if b.adminErr != nil {
		return nil, b.adminErr
	}
	page := &ports.AdminPage{
		Page:     q.Page,
		Statuses: domain.AdminStatuses(),
		Counts:   map[string]int64{domain.CountAll: 0},
	}
	for _, r := range b.requests {
		page.Counts[r.Status]++
		page.Counts[domain.CountAll]++
		if q.Status == "" || r.Status == string(q.Status) {
			page.Requests = append(page.Requests, *r)
		}
	}
	page.Total = int64(len(page.Requests))
	page.TotalPages = (len(page.Requests) + 9) / 10
	return page, nil
}

func (b *stubBackend) UpdateRequestStatus(_ context.Context, id string, u domain.StatusUpdate) (*domain.FilingRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates++
	r, ok := b.requests[id]
	if !ok {
		return nil, &domain.APIError{Status: 404, Message: "filing request not found"}
	}
	r.Status = string(u.Status)
	c := *r
	return &c, nil
}

func (b *stubBackend) AddRequestNote(_ context.Context, id, note string) (*domain.FilingRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes++
	r, ok := b.requests[id]
	if !ok {
		return nil, &domain.APIError{Status: 404, Message: "filing request not found"}
	}
	r.AdminNotes = append(r.AdminNotes, domain.AdminNote{Note: note})
	c := *r
	return &c, nil
}

func (b *stubBackend) DeleteRequest(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	delete(b.requests, id)
	return nil
}

func (b *stubBackend) Statistics(context.Context) (*ports.Statistics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &ports.Statistics{TotalRequests: int64(len(b.requests))}, nil
}

func (b *stubBackend) VerifyAdmin(context.Context) error { return b.verifyErr }

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type fixture struct {
	idp     *stubIdentity
	backend *stubBackend
	store   *storage.Memory
	cache   *cache.Cache
	session *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		idp:     newStubIdentity(),
		backend: newStubBackend(),
		store:   storage.NewMemory(),
	}
	f.cache = cache.New(f.store)
	f.session = NewSession(f.idp, f.backend, f.store, zerolog.Nop())
	t.Cleanup(f.session.Stop)
	return f
}

// signedIn starts the session with a signed-in user of the given role.
func (f *fixture) signedIn(t *testing.T, email string, role domain.Role) *domain.Identity {
	t.Helper()
	f.idp.passwords[email] = "secret"
	f.backend.users["uid-"+email] = &domain.Identity{UID: "uid-" + email, Email: email, Role: role}
	f.session.Start(context.Background())
	<-f.session.Ready()
	id, err := f.session.SignIn(context.Background(), email, "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	return id
}
