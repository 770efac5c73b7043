// Command devbackend serves the filing REST API and the identity emulator
// for local development of the taxdesk client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/api"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/core/service"
	"github.com/taxdesk/filing-client/internal/infrastructure/db/memory"
	mongodb "github.com/taxdesk/filing-client/internal/infrastructure/db/mongo"
	"github.com/taxdesk/filing-client/internal/pkg/config"
	"github.com/taxdesk/filing-client/pkg/logger"
)

const (
	tokenTTL        = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "devbackend: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "devbackend",
	})

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.close()

	filing := service.NewFilingService(repos.requests, log)
	identity := service.NewIdentityService(
		repos.credentials,
		repos.users,
		cfg.Backend.JWTSecret,
		tokenTTL,
		cfg.Backend.AdminEmails,
		log,
	)

	e := api.NewRouter(api.Dependencies{
		Filing:    filing,
		Identity:  identity,
		JWTSecret: cfg.Backend.JWTSecret,
		UploadDir: cfg.Backend.UploadDir,
		Pingers:   repos.pingers,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Backend.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Backend.Store).
			Int("admins", len(cfg.Backend.AdminEmails)).
			Msg("devbackend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type repositories struct {
	requests    ports.RequestRepository
	users       ports.UserRepository
	credentials ports.CredentialRepository
	pingers     map[string]ports.Pinger
	close       func()
}

// openRepositories selects the backend persistence from DEVBACKEND_STORE.
func openRepositories(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Backend.Store {
	case config.StoreMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("db", cfg.Mongo.Database).Msg("using mongodb repositories")
		return &repositories{
			requests:    mongodb.NewRequestRepository(db),
			users:       mongodb.NewUserRepository(db),
			credentials: mongodb.NewCredentialRepository(db),
			pingers:     map[string]ports.Pinger{"mongodb": mongodb.Pinger{Client: client}},
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil

	default:
		log.Warn().Msg("using in-memory repositories; data is lost on restart")
		return &repositories{
			requests:    memory.NewRequestRepository(),
			users:       memory.NewUserRepository(),
			credentials: memory.NewCredentialRepository(),
			pingers:     map[string]ports.Pinger{},
			close:       func() {},
		}, nil
	}
}
