package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/persistence"
	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

// GatewayFactory binds the remote API to one visitor's credentials.
type GatewayFactory func(creds gateway.CredentialSource) AuthGateway

// SizeReporter is told how many stores the registry holds.
type SizeReporter interface {
	SetActiveSessions(n int)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL evicts stores unused for ttl. Zero disables eviction.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTTL = ttl
	}
}

// WithStoreOptions applies opts to every store the registry creates.
func WithStoreOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.storeOpts = append(r.storeOpts, opts...)
	}
}

// WithSizeReporter reports the registry size after every change.
func WithSizeReporter(rep SizeReporter) RegistryOption {
	return func(r *Registry) {
		r.sizes = rep
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

type entry struct {
	store   *Store
	adapter *persistence.Adapter
	creds   *credentials
}

// Registry owns one Store per visitor id. Stores are created lazily and
// rehydrated from the visitor's storage namespace, so an evicted store comes
// back with the same session on the next request.
type Registry struct {
	backend    storage.Backend
	gatewayFor GatewayFactory
	storeOpts  []Option
	idleTTL    time.Duration
	sizes      SizeReporter
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry builds a registry over backend. A nil backend keeps sessions
// in memory only.
func NewRegistry(backend storage.Backend, gatewayFor GatewayFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend:    backend,
		gatewayFor: gatewayFor,
		logger:     zap.NewNop(),
		now:        time.Now,
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the store for visitorID, creating and rehydrating it on first
// use.
func (r *Registry) Get(ctx context.Context, visitorID string) *Store {
	return r.entry(ctx, visitorID).store
}

// Credentials returns the credential source backing visitorID's requests.
// It reads the token from the live session, never from storage.
func (r *Registry) Credentials(ctx context.Context, visitorID string) gateway.CredentialSource {
	return r.entry(ctx, visitorID).creds
}

func (r *Registry) entry(ctx context.Context, visitorID string) *entry {
	if e, ok := r.lookup(visitorID); ok {
		return e
	}

	// Rehydration reads storage, so the store is built without holding r.mu.
	// Two first requests for one visitor may both build; the first insert wins.
	built := r.build(ctx, visitorID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[visitorID]; ok {
		e.store.touch()
		return e
	}
	r.entries[visitorID] = built
	r.reportLocked()
	return built
}

func (r *Registry) lookup(visitorID string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[visitorID]
	if ok {
		e.store.touch()
	}
	return e, ok
}

func (r *Registry) build(ctx context.Context, visitorID string) *entry {
	log := r.logger.With(zap.String("visitor_id", visitorID))

	var kv storage.KeyValue
	if r.backend != nil {
		kv = r.backend.Namespace(visitorID)
	}
	adapter := persistence.New(kv, log)
	creds := &credentials{adapter: adapter}

	var gw AuthGateway
	if r.gatewayFor != nil {
		gw = r.gatewayFor(creds)
	}

	opts := append([]Option{WithLogger(log)}, r.storeOpts...)
	store := NewStore(ctx, adapter, gw, opts...)
	creds.bind(store)

	return &entry{store: store, adapter: adapter, creds: creds}
}

// RememberTenant records the tenant used for visitorID's anonymous requests.
func (r *Registry) RememberTenant(ctx context.Context, visitorID, tenantID string) error {
	return r.entry(ctx, visitorID).adapter.SetTenantID(ctx, tenantID)
}

// Forget drops the in-memory store for visitorID. Persisted state is kept.
func (r *Registry) Forget(visitorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, visitorID)
	r.reportLocked()
}

// Len returns the number of stores held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EvictIdle drops stores that are idle for longer than the configured TTL,
// have nothing in flight and no subscribers. It returns how many were
// dropped.
func (r *Registry) EvictIdle() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.entries {
		if e.store.Busy() || e.store.Subscribers() > 0 || e.store.LastUsed().After(cutoff) {
			continue
		}
		delete(r.entries, id)
		evicted++
	}
	if evicted > 0 {
		r.logger.Debug("evicted idle sessions", zap.Int("count", evicted))
		r.reportLocked()
	}
	return evicted
}

// Run evicts idle stores until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if r.idleTTL <= 0 {
		return
	}
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle()
		}
	}
}

func (r *Registry) reportLocked() {
	if r.sizes != nil {
		r.sizes.SetActiveSessions(len(r.entries))
	}
}
