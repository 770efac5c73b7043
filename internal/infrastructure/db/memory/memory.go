// Package memory holds in-process repositories for the development backend.
// They apply the same filters and ordering as the MongoDB repositories.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

type RequestRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.FilingRequest
}

func NewRequestRepository() *RequestRepository {
	return &RequestRepository{byID: make(map[string]*domain.FilingRequest)}
}

func clone(r *domain.FilingRequest) *domain.FilingRequest {
	c := *r
	c.StatusHistory = append([]domain.StatusHistoryEntry(nil), r.StatusHistory...)
	c.AdminNotes = append([]domain.AdminNote(nil), r.AdminNotes...)
	c.Documents = append([]domain.DocumentRef(nil), r.Documents...)
	if r.PaymentDate != nil {
		d := *r.PaymentDate
		c.PaymentDate = &d
	}
	return &c
}

func (r *RequestRepository) Create(_ context.Context, req *domain.FilingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[req.ConfirmationNumber] = clone(req)
	return nil
}

func (r *RequestRepository) FindByConfirmation(_ context.Context, id string) (*domain.FilingRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return clone(req), nil
}

func matches(req *domain.FilingRequest, f ports.ListRequestsFilter) bool {
	if f.OwnerUID != "" && req.OwnerUID != f.OwnerUID {
		return false
	}
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(req.ConfirmationNumber), q) &&
			!strings.Contains(strings.ToLower(req.Personal.FullName), q) &&
			!strings.Contains(strings.ToLower(req.Personal.Email), q) {
			return false
		}
	}
	return true
}

func (r *RequestRepository) List(_ context.Context, f ports.ListRequestsFilter) ([]*domain.FilingRequest, int64, error) {
	r.mu.RLock()
	var matched []*domain.FilingRequest
	for _, req := range r.byID {
		if matches(req, f) {
			matched = append(matched, clone(req))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ConfirmationNumber > matched[j].ConfirmationNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))

	limit := f.Limit
	if limit <= 0 {
		return matched, total, nil
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * limit
	if skip >= len(matched) {
		return []*domain.FilingRequest{}, total, nil
	}
	end := min(skip+limit, len(matched))
	return matched[skip:end], total, nil
}

func (r *RequestRepository) CountByStatus(context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int64)
	for _, req := range r.byID {
		counts[req.Status]++
	}
	return counts, nil
}

func (r *RequestRepository) AppendStatus(_ context.Context, id, status string, paymentDate *time.Time, entry domain.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	req.Status = status
	if paymentDate != nil {
		d := paymentDate.UTC()
		req.PaymentDate = &d
	}
	req.StatusHistory = append(req.StatusHistory, entry)
	req.UpdatedAt = entry.Timestamp
	return nil
}

func (r *RequestRepository) AppendNote(_ context.Context, id string, note domain.AdminNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byID[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	req.AdminNotes = append(req.AdminNotes, note)
	req.UpdatedAt = note.Timestamp
	return nil
}

func (r *RequestRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrRequestNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *RequestRepository) All(context.Context) ([]*domain.FilingRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.FilingRequest, 0, len(r.byID))
	for _, req := range r.byID {
		out = append(out, clone(req))
	}
	return out, nil
}

type UserRepository struct {
	mu    sync.RWMutex
	byUID map[string]domain.Identity
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byUID: make(map[string]domain.Identity)}
}

func (r *UserRepository) FindByUID(_ context.Context, uid string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUID[uid]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &id, nil
}

func (r *UserRepository) Upsert(_ context.Context, id *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUID[id.UID] = *id
	return nil
}

type CredentialRepository struct {
	mu      sync.RWMutex
	byEmail map[string]domain.Credential
}

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{byEmail: make(map[string]domain.Credential)}
}

func (r *CredentialRepository) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &c, nil
}

func (r *CredentialRepository) Create(_ context.Context, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(c.Email)
	if _, ok := r.byEmail[key]; ok {
		return domain.ErrUserExists
	}
	stored := *c
	stored.Email = key
	r.byEmail[key] = stored
	return nil
}

var (
	_ ports.RequestRepository    = (*RequestRepository)(nil)
	_ ports.UserRepository       = (*UserRepository)(nil)
	_ ports.CredentialRepository = (*CredentialRepository)(nil)
)
