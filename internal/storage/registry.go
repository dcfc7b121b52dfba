package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/config"
	"marketplace-oauth/internal/redis"
)

// Options carries what a backend needs to open itself
type Options struct {
	Config *config.Config
	Redis  *redis.Client // set when REDIS_ADDRESS is configured
	Logger logging.Logger
}

// Factory opens a backend
type Factory func(ctx context.Context, opts Options) (TokenStore, error)

// Registry maps DATABASE_TYPE values to backend factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(storageType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[storageType] = factory
}

func (r *Registry) Create(ctx context.Context, storageType string, opts Options) (TokenStore, error) {
	r.mu.RLock()
	factory, exists := r.factories[storageType]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.ConfigError(fmt.Sprintf("storage type %s not registered, available: %s",
			storageType, strings.Join(r.GetAvailableTypes(), ", ")))
	}

	return factory(ctx, opts)
}

func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for storageType := range r.factories {
		types = append(types, storageType)
	}
	sort.Strings(types)
	return types
}

var DefaultRegistry = NewRegistry()

// Register adds a backend to the default registry
func Register(storageType string, factory Factory) {
	DefaultRegistry.Register(storageType, factory)
}

// NewTokenStore opens the backend named by DATABASE_TYPE and, when
// TOKEN_ENCRYPTION_KEY is set, wraps it so tokens are encrypted at rest.
func NewTokenStore(ctx context.Context, opts Options) (TokenStore, error) {
	if opts.Config == nil {
		return nil, errors.ConfigError("storage requires configuration")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	store, err := DefaultRegistry.Create(ctx, opts.Config.DatabaseType, opts)
	if err != nil {
		return nil, err
	}

	if opts.Config.EncryptionKey == "" {
		opts.Logger.Warn("TOKEN_ENCRYPTION_KEY not set, tokens are stored in clear text")
		return store, nil
	}

	encrypted, err := NewEncryptedStore(store, opts.Config.EncryptionKey)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return encrypted, nil
}
