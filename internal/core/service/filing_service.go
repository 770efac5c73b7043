package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/api/metrics"
	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

// AdminPageSize is the number of rows per page of the admin request table.
const AdminPageSize = 10

type FilingService struct {
	repo   ports.RequestRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewFilingService(repo ports.RequestRepository, logger zerolog.Logger) *FilingService {
	return &FilingService{repo: repo, logger: logger, now: time.Now}
}

// Create stores a new filing request in the initial administrative status.
// The price always comes from the plan catalog.
func (s *FilingService) Create(ctx context.Context, in ports.CreateFilingInput) (*domain.FilingRequest, error) {
	plan, ok := domain.PlanFor(in.ServiceLevel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown service level %q", domain.ErrInvalidPlan, in.ServiceLevel)
	}
	if in.Price != 0 && in.Price != plan.Price {
		s.logger.Warn().Float64("sent", in.Price).Float64("catalog", plan.Price).Msg("price mismatch, using catalog price")
	}
	if len(in.Documents) > domain.MaxDocuments {
		return nil, domain.ErrTooManyDocuments
	}

	now := s.now().UTC()
	req := &domain.FilingRequest{
		ConfirmationNumber: generateConfirmationNumber(),
		OwnerUID:           in.OwnerUID,
		Personal:           in.Personal,
		Banking:            in.Banking,
		PaymentMethod:      in.PaymentMethod,
		ServiceLevel:       plan.Level,
		Price:              plan.Price,
		Status:             string(domain.AdminStatusPending),
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:      string(domain.AdminStatusPending),
			Timestamp:   now,
			Description: "Request received",
		}},
		AdminNotes: []domain.AdminNote{},
		Documents:  in.Documents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Documents == nil {
		req.Documents = []domain.DocumentRef{}
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.Error().Err(err).Msg("failed to create filing request")
		return nil, err
	}

	metrics.RequestsCreatedTotal.WithLabelValues(string(plan.Level)).Inc()
	metrics.DocumentsUploadedTotal.Add(float64(len(req.Documents)))
	s.logger.Info().Str("confirmation", req.ConfirmationNumber).Str("uid", in.OwnerUID).Msg("filing request created")

	return req, nil
}

// Get returns one request when the actor may see it.
func (s *FilingService) Get(ctx context.Context, actor ports.Actor, id string) (*domain.FilingRequest, error) {
	req, err := s.repo.FindByConfirmation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(req.OwnerUID) {
		return nil, domain.ErrForbidden
	}
	return forActor(actor, req), nil
}

// ListForOwner returns every request of uid, newest first.
func (s *FilingService) ListForOwner(ctx context.Context, actor ports.Actor, uid string) ([]*domain.FilingRequest, error) {
	if !actor.CanAccess(uid) {
		return nil, domain.ErrForbidden
	}
	items, _, err := s.repo.List(ctx, ports.ListRequestsFilter{OwnerUID: uid})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.FilingRequest, len(items))
	for i, r := range items {
		out[i] = forActor(actor, r)
	}
	return out, nil
}

// forActor hides the internal admin notes from everyone but admins.
func forActor(actor ports.Actor, req *domain.FilingRequest) *domain.FilingRequest {
	if actor.Role == domain.RoleAdmin {
		return req
	}
	c := *req
	c.AdminNotes = []domain.AdminNote{}
	return &c
}

func (s *FilingService) ListAdmin(ctx context.Context, q ports.AdminQuery) (*ports.AdminPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, q.Status)
	}

	items, total, err := s.repo.List(ctx, ports.ListRequestsFilter{
		Status: string(q.Status),
		Search: strings.TrimSpace(q.Search),
		Page:   q.Page,
		Limit:  AdminPageSize,
	})
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var all int64
	for _, n := range counts {
		all += n
	}
	counts[domain.CountAll] = all

	page := &ports.AdminPage{
		Requests:   make([]domain.FilingRequest, 0, len(items)),
		Page:       q.Page,
		TotalPages: int((total + AdminPageSize - 1) / AdminPageSize),
		Total:      total,
		Statuses:   domain.AdminStatuses(),
		Counts:     counts,
	}
	if page.TotalPages == 0 {
		page.TotalPages = 1
	}
	for _, it := range items {
		page.Requests = append(page.Requests, *it)
	}
	return page, nil
}

// UpdateStatus validates u, appends one history entry and returns the
// updated request.
func (s *FilingService) UpdateStatus(ctx context.Context, id string, u domain.StatusUpdate) (*domain.FilingRequest, error) {
	if err := u.Check(); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByConfirmation(ctx, id); err != nil {
		return nil, err
	}

	var paymentDate *time.Time
	if u.Status.RequiresPaymentDate() {
		d := u.PaymentDate.UTC()
		paymentDate = &d
	}
	if err := s.repo.AppendStatus(ctx, id, string(u.Status), paymentDate, u.HistoryEntry(s.now())); err != nil {
		s.logger.Error().Err(err).Str("confirmation", id).Msg("failed to update status")
		return nil, err
	}

	metrics.StatusUpdatesTotal.WithLabelValues(string(u.Status)).Inc()
	s.logger.Info().Str("confirmation", id).Str("status", string(u.Status)).Msg("status updated")

	return s.repo.FindByConfirmation(ctx, id)
}

func (s *FilingService) AddNote(ctx context.Context, id, note string) (*domain.FilingRequest, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.ErrNoteRequired
	}
	if err := s.repo.AppendNote(ctx, id, domain.AdminNote{Note: note, Timestamp: s.now().UTC()}); err != nil {
		return nil, err
	}
	return s.repo.FindByConfirmation(ctx, id)
}

func (s *FilingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RequestsDeletedTotal.Inc()
	s.logger.Info().Str("confirmation", id).Msg("filing request deleted")
	return nil
}

// Statistics aggregates every stored request.
func (s *FilingService) Statistics(ctx context.Context) (*ports.Statistics, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ports.Statistics{
		TotalRequests:  int64(len(all)),
		ByStatus:       make(map[string]int64),
		ByServiceLevel: make(map[string]int64),
		Monthly:        []ports.MonthlyCount{},
	}
	monthly := make(map[string]int64)
	for _, r := range all {
		stats.ByStatus[r.Status]++
		stats.ByServiceLevel[string(r.ServiceLevel)]++
		stats.TotalRevenue += r.Price
		monthly[r.CreatedAt.UTC().Format("2006-01")]++
	}
	for m, n := range monthly {
		stats.Monthly = append(stats.Monthly, ports.MonthlyCount{Month: m, Count: n})
	}
	sort.Slice(stats.Monthly, func(i, j int) bool { return stats.Monthly[i].Month < stats.Monthly[j].Month })

	return stats, nil
}

// generateConfirmationNumber returns a confirmation number in the format TAX-XXXXXXXX.
func generateConfirmationNumber() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("TAX-%08X", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return fmt.Sprintf("TAX-%08X", b)
}

var _ ports.FilingService = (*FilingService)(nil)
