package ports

import "context"

// KVStore is durable client storage: string keys to string values.
// Get returns domain.ErrKeyNotFound for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Pinger is implemented by stores and services that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}
