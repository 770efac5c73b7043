package client

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/infrastructure/cache"
)

// Tracking is the owner-facing progress of one request.
type Tracking struct {
	Status   domain.Status
	Known    bool
	Step     int
	Total    int
	Progress float64
}

// Percent returns Progress as a whole percentage.
func (t Tracking) Percent() int { return int(t.Progress*100 + 0.5) }

// Tracker reads the signed-in user's requests through the cache.
type Tracker struct {
	session *Session
	api     ports.RequestAPI
	cache   *cache.Cache
	log     zerolog.Logger
}

func NewTracker(session *Session, api ports.RequestAPI, c *cache.Cache, log zerolog.Logger) *Tracker {
	return &Tracker{
		session: session,
		api:     api,
		cache:   c,
		log:     log.With().Str("component", "tracker").Logger(),
	}
}

// ListMine returns the user's requests. A 404 from the backend is an empty list.
func (t *Tracker) ListMine(ctx context.Context) ([]domain.FilingRequest, error) {
	me := t.session.Current()
	if me == nil {
		return nil, domain.ErrSessionExpired
	}
	key := cache.UserListKey(me.UID)

	var cached []domain.FilingRequest
	if t.cache.Get(ctx, key, cache.ListWindow, &cached) {
		return cached, nil
	}

	list, err := t.api.ListUserRequests(ctx, me.UID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.FilingRequest{}, nil
		}
		return nil, t.session.Guard(ctx, err)
	}
	if err := t.cache.Set(ctx, key, list); err != nil {
		t.log.Warn().Err(err).Msg("cache request list")
	}
	return list, nil
}

// Get returns one request. A 404 is domain.ErrRequestNotFound.
func (t *Tracker) Get(ctx context.Context, id string) (*domain.FilingRequest, error) {
	if t.session.Current() == nil {
		return nil, domain.ErrSessionExpired
	}
	key := cache.DetailKey(id)

	var cached domain.FilingRequest
	if t.cache.Get(ctx, key, cache.DetailWindow, &cached) {
		return &cached, nil
	}

	req, err := t.api.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, t.session.Guard(ctx, err)
	}
	if err := t.cache.Set(ctx, key, req); err != nil {
		t.log.Warn().Err(err).Msg("cache request detail")
	}
	return req, nil
}

// Refresh drops the cached list of the signed-in user.
func (t *Tracker) Refresh(ctx context.Context) error {
	me := t.session.Current()
	if me == nil {
		return nil
	}
	return t.cache.Invalidate(ctx, cache.UserListKey(me.UID))
}

// Track computes progress for req. A status outside the lifecycle reports
// zero progress and is logged.
func (t *Tracker) Track(req *domain.FilingRequest) Tracking {
	s := req.LifecycleStatus()
	tr := Tracking{
		Status:   s,
		Known:    s.Known(),
		Step:     s.Step(),
		Total:    len(domain.Lifecycle()),
		Progress: s.Progress(),
	}
	if !tr.Known {
		t.log.Warn().
			Str("confirmation", req.ConfirmationNumber).
			Str("status", string(s)).
			Msg("status outside the request lifecycle")
	}
	return tr
}
