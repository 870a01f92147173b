package provider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// Provider is a single external identity provider.
type Provider interface {
	Name() string
	// BeginAuth returns the authorization URL the browser should be sent to.
	BeginAuth(ctx context.Context, state string) (string, error)
	// CompleteAuth exchanges a callback code for the provider's view of the user.
	CompleteAuth(ctx context.Context, code string) (*domain.ProviderProfile, error)
}

// Registry holds the configured providers by name
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry from the given providers
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q: %w", name, domain.ErrAuthProvider)
	}
	return p, nil
}

// Names returns the registered provider names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

const stateTTL = 10 * time.Minute

// StateStore issues and redeems one-shot OAuth state values for CSRF
// protection. States live in Redis so validation survives restarts and
// works across replicas.
type StateStore struct {
	redis *database.Redis
}

// NewStateStore creates a new state store
func NewStateStore(redis *database.Redis) *StateStore {
	return &StateStore{redis: redis}
}

// Issue mints a random state and stores it for one redemption
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(raw)

	if err := s.redis.Client.Set(ctx, "oauth:state:"+state, "1", stateTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return state, nil
}

// Redeem consumes a state; a second redemption of the same value fails.
func (s *StateStore) Redeem(ctx context.Context, state string) error {
	if state == "" {
		return fmt.Errorf("missing state: %w", domain.ErrAuthProvider)
	}

	err := s.redis.Client.GetDel(ctx, "oauth:state:"+state).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("unknown or expired state: %w", domain.ErrAuthProvider)
	}
	if err != nil {
		return fmt.Errorf("failed to redeem state: %w", err)
	}

	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// errorJoinProvider tags a transport or decoding failure as a provider
// error so callers can map all of them uniformly.
func errorJoinProvider(err error) error {
	return errors.Join(domain.ErrAuthProvider, err)
}
