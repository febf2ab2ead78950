package session

import (
	"context"
	"sync"

	"github.com/noah-isme/nexlearn-dashboard/internal/persistence"
)

// credentials resolves the outbound credentials of one visitor. The token
// always comes from the live session; a failed or missing storage write never
// strips it. The tenant comes from the session user, then from the tenant
// remembered in persistence.
type credentials struct {
	adapter *persistence.Adapter

	mu    sync.Mutex
	store *Store
}

func (c *credentials) bind(store *Store) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

func (c *credentials) session() *Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Token implements gateway.CredentialSource.
func (c *credentials) Token(context.Context) string {
	store := c.session()
	if store == nil {
		return ""
	}
	token, _ := store.credentials()
	return token
}

// TenantID implements gateway.CredentialSource.
func (c *credentials) TenantID(ctx context.Context) string {
	if store := c.session(); store != nil {
		if _, tenant := store.credentials(); tenant != "" {
			return tenant
		}
	}
	return c.adapter.TenantID(ctx)
}
