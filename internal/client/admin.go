package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/core/validation"
	"github.com/taxdesk/filing-client/internal/infrastructure/cache"
	"github.com/taxdesk/filing-client/internal/pkg/debounce"
)

// SearchDebounce is the quiet interval before a search is sent.
const SearchDebounce = 500 * time.Millisecond

// AdminView is one delivered result of the admin table.
type AdminView struct {
	Query ports.AdminQuery
	Page  *ports.AdminPage
	Err   error
}

// AdminOption configures an AdminConsole.
type AdminOption func(*adminOptions)

type adminOptions struct {
	delay     time.Duration
	scheduler debounce.Scheduler
}

// WithSearchDelay overrides SearchDebounce.
func WithSearchDelay(d time.Duration) AdminOption {
	return func(o *adminOptions) { o.delay = d }
}

// WithSearchScheduler replaces the timer source of the search debounce.
func WithSearchScheduler(s debounce.Scheduler) AdminOption {
	return func(o *adminOptions) { o.scheduler = s }
}

// AdminConsole drives the admin request table: search, status filter and
// paging are sent to the backend, and every mutation reloads the table.
type AdminConsole struct {
	session  *Session
	api      ports.AdminAPI
	cache    *cache.Cache
	log      zerolog.Logger
	onResult func(AdminView)
	search   *debounce.Debouncer[string]
	delay    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	query ports.AdminQuery
	view  AdminView
	gen   uint64
}

// NewAdminConsole returns a console delivering results to onResult. onResult
// may be nil when callers only read View.
func NewAdminConsole(session *Session, api ports.AdminAPI, c *cache.Cache, log zerolog.Logger, onResult func(AdminView), opts ...AdminOption) *AdminConsole {
	o := adminOptions{delay: SearchDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &AdminConsole{
		session:  session,
		api:      api,
		cache:    c,
		log:      log.With().Str("component", "admin").Logger(),
		onResult: onResult,
		delay:    o.delay,
		ctx:      ctx,
		cancel:   cancel,
		query:    ports.AdminQuery{Page: 1},
	}
	var dopts []debounce.Option
	if o.scheduler != nil {
		dopts = append(dopts, debounce.WithScheduler(o.scheduler))
	}
	a.search = debounce.New(o.delay, a.applySearch, dopts...)
	return a
}

// Close stops the search debounce and abandons pending loads.
func (a *AdminConsole) Close() {
	a.search.Stop()
	a.cancel()
}

// Query returns the current query.
func (a *AdminConsole) Query() ports.AdminQuery {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.query
}

// View returns the last delivered result.
func (a *AdminConsole) View() AdminView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// SetSearch resets the page to 1 now and sends text once typing has paused.
func (a *AdminConsole) SetSearch(text string) {
	a.mu.Lock()
	a.query.Page = 1
	a.mu.Unlock()
	a.search.Push(text)
}

// FlushSearch sends a pending search immediately.
func (a *AdminConsole) FlushSearch() bool { return a.search.Flush() }

// WatchSearch applies search text received on in once in has been quiet for
// the search delay. Every value resets the page to 1 on arrival. A value
// still waiting when in is closed is applied before WatchSearch returns.
func (a *AdminConsole) WatchSearch(ctx context.Context, in <-chan string) {
	typed := make(chan string)
	go func() {
		defer close(typed)
		for text := range in {
			a.mu.Lock()
			a.query.Page = 1
			a.mu.Unlock()
			select {
			case typed <- text:
			case <-ctx.Done():
				// drain in without forwarding
			}
		}
	}()
	for text := range debounce.Stream(ctx, typed, a.delay) {
		a.applySearch(text)
	}
}

func (a *AdminConsole) applySearch(text string) {
	a.mu.Lock()
	a.query.Search = text
	a.query.Page = 1
	a.mu.Unlock()
	_ = a.load(a.ctx)
}

// SetStatus filters by status (empty for all), resets the page and reloads.
func (a *AdminConsole) SetStatus(ctx context.Context, status domain.AdminStatus) error {
	if status != "" && !a.statusOffered(status) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	a.mu.Lock()
	a.query.Status = status
	a.query.Page = 1
	a.mu.Unlock()
	return a.load(ctx)
}

// statusOffered checks status against the options the backend last sent,
// falling back to the known vocabulary before the first load.
func (a *AdminConsole) statusOffered(status domain.AdminStatus) bool {
	a.mu.Lock()
	page := a.view.Page
	a.mu.Unlock()
	if page == nil || len(page.Statuses) == 0 {
		return status.Valid()
	}
	for _, s := range page.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// SetPage moves to page n, clamped to the known page range.
func (a *AdminConsole) SetPage(ctx context.Context, n int) error {
	a.mu.Lock()
	if n < 1 {
		n = 1
	}
	if p := a.view.Page; p != nil && p.TotalPages > 0 && n > p.TotalPages {
		n = p.TotalPages
	}
	a.query.Page = n
	a.mu.Unlock()
	return a.load(ctx)
}

// Reload fetches the current query again.
func (a *AdminConsole) Reload(ctx context.Context) error { return a.load(ctx) }

// load fetches the current query. Results of loads overtaken by a newer one
// are dropped.
func (a *AdminConsole) load(ctx context.Context) error {
	if !a.session.IsAdmin() {
		return domain.ErrForbidden
	}
	a.mu.Lock()
	a.gen++
	gen := a.gen
	q := a.query
	a.mu.Unlock()

	page, err := a.api.ListAdminRequests(ctx, q)
	if err != nil {
		err = a.session.Guard(ctx, err)
	}

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		a.log.Debug().Uint64("generation", gen).Msg("dropping stale admin result")
		return nil
	}
	view := AdminView{Query: q, Err: err}
	if err == nil {
		if !page.CountsConsistent() {
			a.log.Warn().Interface("counts", page.Counts).Msg("status counts do not add up to the total")
		}
		view.Page = page
	} else {
		view.Page = a.view.Page
	}
	a.view = view
	a.mu.Unlock()

	if err != nil {
		a.log.Error().Err(err).Interface("query", q).Msg("load admin requests")
	}
	if a.onResult != nil {
		a.onResult(view)
	}
	return err
}

// CanDelete reports whether typed confirms deletion of id. The match is exact.
func (a *AdminConsole) CanDelete(id, typed string) bool {
	return id != "" && typed == id
}

// Delete removes request id after the confirmation number was typed back.
func (a *AdminConsole) Delete(ctx context.Context, id, typed string) error {
	if !a.CanDelete(id, typed) {
		return domain.ErrConfirmationMismatch
	}
	if !a.session.IsAdmin() {
		return domain.ErrForbidden
	}
	owner := a.ownerOf(id)
	if err := a.api.DeleteRequest(ctx, id); err != nil {
		return a.session.Guard(ctx, err)
	}
	a.log.Info().Str("confirmation", id).Msg("request deleted")
	a.invalidate(ctx, id, owner)
	return a.load(ctx)
}

// UpdateStatus validates u, sends it and reloads.
func (a *AdminConsole) UpdateStatus(ctx context.Context, id string, u domain.StatusUpdate) (*domain.FilingRequest, error) {
	if err := validation.StatusUpdate(u); err != nil {
		return nil, err
	}
	if !a.session.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	req, err := a.api.UpdateRequestStatus(ctx, id, u)
	if err != nil {
		return nil, a.session.Guard(ctx, err)
	}
	a.log.Info().Str("confirmation", id).Str("status", string(u.Status)).Msg("status updated")
	a.invalidate(ctx, id, req.OwnerUID)
	if err := a.load(ctx); err != nil {
		return req, err
	}
	return req, nil
}

// AddNote appends an internal note and reloads.
func (a *AdminConsole) AddNote(ctx context.Context, id, note string) (*domain.FilingRequest, error) {
	if err := validation.Note(note); err != nil {
		return nil, err
	}
	if !a.session.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	req, err := a.api.AddRequestNote(ctx, id, note)
	if err != nil {
		return nil, a.session.Guard(ctx, err)
	}
	a.invalidate(ctx, id, req.OwnerUID)
	if err := a.load(ctx); err != nil {
		return req, err
	}
	return req, nil
}

// Statistics returns the aggregate view.
func (a *AdminConsole) Statistics(ctx context.Context) (*ports.Statistics, error) {
	if !a.session.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	stats, err := a.api.Statistics(ctx)
	if err != nil {
		return nil, a.session.Guard(ctx, err)
	}
	return stats, nil
}

// Verify asks the backend to confirm the admin role. A 403 means the role
// was withdrawn and does not end the session.
func (a *AdminConsole) Verify(ctx context.Context) error {
	if !a.session.IsAdmin() {
		return domain.ErrForbidden
	}
	err := a.api.VerifyAdmin(ctx)
	if errors.Is(err, domain.ErrForbidden) {
		return domain.ErrForbidden
	}
	return a.session.Guard(ctx, err)
}

func (a *AdminConsole) ownerOf(id string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.view.Page == nil {
		return ""
	}
	for _, r := range a.view.Page.Requests {
		if r.ConfirmationNumber == id {
			return r.OwnerUID
		}
	}
	return ""
}

func (a *AdminConsole) invalidate(ctx context.Context, id, owner string) {
	keys := []string{cache.DetailKey(id)}
	if owner != "" {
		keys = append(keys, cache.UserListKey(owner))
	}
	if err := a.cache.Invalidate(ctx, keys...); err != nil {
		a.log.Warn().Err(err).Msg("invalidate cache after admin change")
	}
}
