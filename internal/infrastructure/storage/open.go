package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taxdesk/filing-client/internal/core/ports"
	mongodb "github.com/taxdesk/filing-client/internal/infrastructure/db/mongo"
	redisdb "github.com/taxdesk/filing-client/internal/infrastructure/db/redis"
	"github.com/taxdesk/filing-client/internal/pkg/config"
)

// redisNamespace prefixes every client key so a shared Redis stays tidy.
const redisNamespace = "taxdesk:"

// Store is a KVStore that can report liveness and release its connection.
type Store interface {
	ports.KVStore
	ports.Pinger
	Close(ctx context.Context) error
}

type closer struct {
	ports.KVStore
	ports.Pinger
	close func(ctx context.Context) error
}

func (c closer) Close(ctx context.Context) error {
	if c.close == nil {
		return nil
	}
	return c.close(ctx)
}

// Open builds the store selected by cfg.Client.Store.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Client.Store {
	case config.StoreMemory:
		m := NewMemory()
		return closer{KVStore: m, Pinger: m}, nil

	case config.StoreFile:
		dir := cfg.Client.StoreDir
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("storage: locate config dir: %w", err)
			}
			dir = filepath.Join(base, "taxdesk")
		}
		f, err := NewFile(dir)
		if err != nil {
			return nil, err
		}
		return closer{KVStore: f, Pinger: f}, nil

	case config.StoreRedis:
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		r := NewRedis(client, redisNamespace)
		return closer{KVStore: r, Pinger: r, close: func(context.Context) error { return r.Close() }}, nil

	case config.StoreMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		m := NewMongo(db)
		return closer{KVStore: m, Pinger: m, close: client.Disconnect}, nil
	}
	return nil, fmt.Errorf("storage: unknown store %q", cfg.Client.Store)
}
