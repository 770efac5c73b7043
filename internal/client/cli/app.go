package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/client"
	"github.com/taxdesk/filing-client/internal/infrastructure/backend"
	"github.com/taxdesk/filing-client/internal/infrastructure/cache"
	"github.com/taxdesk/filing-client/internal/infrastructure/identity"
	"github.com/taxdesk/filing-client/internal/infrastructure/storage"
	"github.com/taxdesk/filing-client/internal/pkg/config"
)

// App holds the client components shared by every command of one invocation.
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   storage.Store
	idp     *identity.Client
	api     *backend.Client
	session *client.Session
	cache   *cache.Cache
}

// Opener builds the App for a command run.
type Opener func(ctx context.Context) (*App, error)

// Open connects the store selected by cfg and builds the App on top of it.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a, err := New(ctx, cfg, store, log)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return a, nil
}

// New restores the persisted credential from store, starts the session and
// waits for its first resolution.
func New(ctx context.Context, cfg *config.Config, store storage.Store, log zerolog.Logger) (*App, error) {
	idp := identity.New(cfg.Client.IdentityURL, store, identity.WithLogger(log))
	if err := idp.Restore(ctx); err != nil {
		return nil, err
	}
	api := backend.New(cfg.Client.APIURL, idp,
		backend.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		backend.WithLogger(log),
	)

	session := client.NewSession(idp, api, store, log)
	session.Start(ctx)
	select {
	case <-session.Ready():
	case <-ctx.Done():
		session.Stop()
		return nil, fmt.Errorf("cli: waiting for session: %w", ctx.Err())
	}

	return &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		idp:     idp,
		api:     api,
		session: session,
		cache:   cache.New(store, cache.WithLogger(log)),
	}, nil
}

// Close stops the session and releases the store.
func (a *App) Close(ctx context.Context) error {
	a.session.Stop()
	return a.store.Close(ctx)
}

func (a *App) submission() *client.Submission {
	return client.NewSubmission(a.session, a.api, a.cache, a.log)
}

func (a *App) tracker() *client.Tracker {
	return client.NewTracker(a.session, a.api, a.cache, a.log)
}

func (a *App) console(onResult func(client.AdminView)) *client.AdminConsole {
	return client.NewAdminConsole(a.session, a.api, a.cache, a.log, onResult)
}
