package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/pkg/config"
	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

type sizeRecorder struct {
	mu   sync.Mutex
	last int
}

func (s *sizeRecorder) SetActiveSessions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = n
}

func TestRegistryReturnsOneStorePerVisitor(t *testing.T) {
	sizes := &sizeRecorder{}
	var bound []gateway.CredentialSource
	registry := NewRegistry(storage.NewMemoryBackend(), func(creds gateway.CredentialSource) AuthGateway {
		bound = append(bound, creds)
		return &fakeGateway{authData: &models.AuthData{User: student(), Token: "t1"}}
	}, WithSizeReporter(sizes))
	ctx := context.Background()

	a := registry.Get(ctx, "a")
	assert.Same(t, a, registry.Get(ctx, "a"))
	assert.NotSame(t, a, registry.Get(ctx, "b"))
	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, 2, sizes.last)
	require.Len(t, bound, 2)
	assert.Same(t, bound[0], registry.Credentials(ctx, "a"))
}

func TestRegistryRehydratesAfterForget(t *testing.T) {
	registry := NewRegistry(storage.NewMemoryBackend(), func(gateway.CredentialSource) AuthGateway {
		return &fakeGateway{authData: &models.AuthData{User: student(), Token: "t1"}}
	})
	ctx := context.Background()

	_, err := registry.Get(ctx, "a").Login(ctx, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "t1", registry.Credentials(ctx, "a").Token(ctx))
	assert.Equal(t, "tenant-a", registry.Credentials(ctx, "a").TenantID(ctx))

	registry.Forget("a")
	assert.Zero(t, registry.Len())

	state := registry.Get(ctx, "a").State()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "u1", state.User.ID)
}

func TestRegistryEvictIdle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	registry := NewRegistry(nil, nil, WithIdleTTL(time.Minute), WithStoreOptions(withClock(clock)))
	registry.now = clock
	ctx := context.Background()

	registry.Get(ctx, "idle")
	watched := registry.Get(ctx, "watched")
	unsubscribe := watched.Subscribe(func(models.SessionEvent) {})

	now = now.Add(2 * time.Minute)
	registry.Get(ctx, "fresh")

	assert.Equal(t, 1, registry.EvictIdle())
	assert.Equal(t, 2, registry.Len())

	unsubscribe()
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, registry.EvictIdle())
	assert.Zero(t, registry.Len())
}

func TestRegistryWithoutTTLNeverEvicts(t *testing.T) {
	registry := NewRegistry(nil, nil)
	registry.Get(context.Background(), "a")
	assert.Zero(t, registry.EvictIdle())
	assert.Equal(t, 1, registry.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	registry.Run(ctx)
}

func TestRegistryRememberTenant(t *testing.T) {
	registry := NewRegistry(storage.NewMemoryBackend(), nil)
	ctx := context.Background()

	require.NoError(t, registry.RememberTenant(ctx, "a", "tenant-z"))
	assert.Equal(t, "tenant-z", registry.Credentials(ctx, "a").TenantID(ctx))
	assert.Empty(t, registry.Credentials(ctx, "b").TenantID(ctx))
}

// failingBackend reads as empty and rejects every write.
type failingBackend struct{}

func (failingBackend) Namespace(string) storage.KeyValue { return failingKV{} }

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (failingKV) Set(context.Context, string, string) error         { return errors.New("disk full") }
func (failingKV) Remove(context.Context, string) error              { return nil }

func TestRegistrySendsSessionTokenWhenStorageCannotHoldIt(t *testing.T) {
	for name, backend := range map[string]storage.Backend{
		"no backend":     nil,
		"failing writes": failingBackend{},
	} {
		t.Run(name, func(t *testing.T) {
			profileAuth := make(chan string, 1)
			api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				switch r.URL.Path {
				case "/auth/login":
					fmt.Fprint(w, `{"success":true,"data":{"token":"t1","user":{"id":"u1","tenantId":"tenant-a","role":"student"}}}`)
				case "/auth/profile":
					profileAuth <- r.Header.Get("Authorization")
					fmt.Fprint(w, `{"success":true,"data":{"user":{"id":"u1","tenantId":"tenant-a","role":"student","firstName":"Ana"}}}`)
				default:
					http.NotFound(w, r)
				}
			}))
			defer api.Close()

			client := gateway.New(config.APIConfig{BaseURL: api.URL, Timeout: 5 * time.Second})
			registry := NewRegistry(backend, func(creds gateway.CredentialSource) AuthGateway {
				return client.Auth(creds)
			})
			ctx := context.Background()
			store := registry.Get(ctx, "a")

			_, err := store.Login(ctx, models.LoginRequest{Email: "ana@example.com", Password: "secret"})
			require.NoError(t, err)
			_, err = store.FetchProfile(ctx)
			require.NoError(t, err)

			assert.Equal(t, "Bearer t1", <-profileAuth)
			assert.Equal(t, "t1", registry.Credentials(ctx, "a").Token(ctx))
			assert.Equal(t, "tenant-a", registry.Credentials(ctx, "a").TenantID(ctx))
			assert.Equal(t, "Ana", store.State().User.FirstName)
		})
	}
}

func TestRegistryCredentialsFollowLogout(t *testing.T) {
	registry := NewRegistry(storage.NewMemoryBackend(), nil)
	ctx := context.Background()
	store := registry.Get(ctx, "a")

	store.SetCredentials(ctx, student(), "t1")
	assert.Equal(t, "t1", registry.Credentials(ctx, "a").Token(ctx))

	store.Logout(ctx)
	assert.Empty(t, registry.Credentials(ctx, "a").Token(ctx))
	assert.Empty(t, registry.Credentials(ctx, "a").TenantID(ctx))
}

// slowBackend blocks the first storage read of one visitor until release is
// closed.
type slowBackend struct {
	*storage.MemoryBackend
	slow    string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *slowBackend) Namespace(id string) storage.KeyValue {
	kv := b.MemoryBackend.Namespace(id)
	if id != b.slow {
		return kv
	}
	return &slowKV{KeyValue: kv, backend: b}
}

type slowKV struct {
	storage.KeyValue
	backend *slowBackend
}

func (k *slowKV) Get(ctx context.Context, key string) (string, bool, error) {
	k.backend.once.Do(func() { close(k.backend.entered) })
	<-k.backend.release
	return k.KeyValue.Get(ctx, key)
}

func TestRegistryLookupDoesNotWaitOnAnotherVisitorsRehydrate(t *testing.T) {
	backend := &slowBackend{
		MemoryBackend: storage.NewMemoryBackend(),
		slow:          "slow",
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	registry := NewRegistry(backend, nil)
	ctx := context.Background()

	slowDone := make(chan struct{})
	go func() {
		registry.Get(ctx, "slow")
		close(slowDone)
	}()
	<-backend.entered

	fastDone := make(chan struct{})
	go func() {
		registry.Get(ctx, "fast")
		close(fastDone)
	}()

	select {
	case <-fastDone:
	case <-time.After(time.Second):
		close(backend.release)
		t.Fatal("visitor fast waited on visitor slow's storage read")
	}

	close(backend.release)
	<-slowDone
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryConcurrentFirstUseSharesOneStore(t *testing.T) {
	registry := NewRegistry(storage.NewMemoryBackend(), nil)
	ctx := context.Background()

	const callers = 8
	stores := make([]*Store, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i] = registry.Get(ctx, "a")
		}(i)
	}
	wg.Wait()

	for _, s := range stores[1:] {
		assert.Same(t, stores[0], s)
	}
	assert.Equal(t, 1, registry.Len())
}
