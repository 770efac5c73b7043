package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

type Config struct {
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Client  ClientConfig
	Backend BackendConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// ClientConfig is read by the taxdesk CLI.
type ClientConfig struct {
	APIURL      string        `env:"TAXDESK_API_URL,      default=http://localhost:8080/api"`
	IdentityURL string        `env:"TAXDESK_IDENTITY_URL, default=http://localhost:8080/identity/v1"`
	Store       string        `env:"TAXDESK_STORE,        default=file"`
	StoreDir    string        `env:"TAXDESK_STORE_DIR"`
	// Timeout caps each backend call. Zero leaves calls bounded only by
	// the command context.
	Timeout     time.Duration `env:"TAXDESK_HTTP_TIMEOUT"`
}

// BackendConfig is read by the development backend.
type BackendConfig struct {
	Port        string   `env:"PORT,             default=8080"`
	JWTSecret   string   `env:"JWT_SECRET,       default=dev-secret-change-me"`
	Store       string   `env:"DEVBACKEND_STORE, default=memory"`
	AdminEmails []string `env:"ADMIN_EMAILS"`
	UploadDir   string   `env:"UPLOAD_DIR"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=taxdesk"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads an optional .env file and then the environment. Values already
// present in the environment win over the file.
func Load(ctx context.Context, files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for process entry points.
func MustLoad() *Config {
	cfg, err := Load(context.Background())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Client.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreMongo:
	default:
		return fmt.Errorf("config: TAXDESK_STORE must be one of memory, file, redis, mongo (got %q)", c.Client.Store)
	}
	switch c.Backend.Store {
	case StoreMemory, StoreMongo:
	default:
		return fmt.Errorf("config: DEVBACKEND_STORE must be memory or mongo (got %q)", c.Backend.Store)
	}
	return nil
}
