// Package persistence mirrors session credentials into a visitor's durable
// key-value namespace. It is a dumb mirror: token format and expiry are the
// remote API's business.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

// Storage keys, matching the browser client.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyTenantID = "tenantId"
)

// Snapshot is what a rehydration restores.
type Snapshot struct {
	Token string
	User  *models.User
}

// Adapter reads and writes session credentials. A nil Adapter, or one built
// over a nil namespace, is usable: loads come back empty and writes are no-ops.
type Adapter struct {
	kv     storage.KeyValue
	logger *zap.Logger
}

// New wraps kv.
func New(kv storage.KeyValue, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{kv: kv, logger: logger}
}

func (a *Adapter) available() bool {
	return a != nil && a.kv != nil
}

// Load returns the persisted session. A missing token, a missing user or a
// user record that no longer decodes all load as "no session"; corrupt
// entries are removed so the next load is clean.
func (a *Adapter) Load(ctx context.Context) (Snapshot, bool) {
	if !a.available() {
		return Snapshot{}, false
	}

	token, hasToken, err := a.kv.Get(ctx, KeyToken)
	if err != nil {
		a.logger.Warn("session storage read failed", zap.String("key", KeyToken), zap.Error(err))
		return Snapshot{}, false
	}
	rawUser, hasUser, err := a.kv.Get(ctx, KeyUser)
	if err != nil {
		a.logger.Warn("session storage read failed", zap.String("key", KeyUser), zap.Error(err))
		return Snapshot{}, false
	}

	if !hasToken || token == "" {
		if hasUser {
			a.discard(ctx, "user without token")
		}
		return Snapshot{}, false
	}
	if !hasUser {
		a.discard(ctx, "token without user")
		return Snapshot{}, false
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		a.logger.Warn("persisted user is corrupt", zap.Error(err))
		a.discard(ctx, "corrupt user")
		return Snapshot{}, false
	}

	return Snapshot{Token: token, User: &user}, true
}

// Save mirrors a fresh login.
func (a *Adapter) Save(ctx context.Context, token string, user *models.User) error {
	if !a.available() {
		return nil
	}
	if err := a.kv.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return a.SaveUser(ctx, user)
}

// SaveUser replaces the persisted user record and remembers its tenant.
func (a *Adapter) SaveUser(ctx context.Context, user *models.User) error {
	if !a.available() || user == nil {
		return nil
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := a.kv.Set(ctx, KeyUser, string(payload)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if user.TenantID != "" {
		if err := a.kv.Set(ctx, KeyTenantID, user.TenantID); err != nil {
			return fmt.Errorf("persist tenant: %w", err)
		}
	}
	return nil
}

// Clear removes every persisted key.
func (a *Adapter) Clear(ctx context.Context) error {
	if !a.available() {
		return nil
	}
	for _, key := range []string{KeyToken, KeyUser, KeyTenantID} {
		if err := a.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

// Token returns the persisted bearer credential, or "".
func (a *Adapter) Token(ctx context.Context) string {
	if !a.available() {
		return ""
	}
	token, _, err := a.kv.Get(ctx, KeyToken)
	if err != nil {
		a.logger.Warn("session storage read failed", zap.String("key", KeyToken), zap.Error(err))
		return ""
	}
	return token
}

// TenantID resolves the tenant from the persisted user, falling back to the
// remembered tenant value.
func (a *Adapter) TenantID(ctx context.Context) string {
	if !a.available() {
		return ""
	}
	if rawUser, ok, err := a.kv.Get(ctx, KeyUser); err == nil && ok {
		var user models.User
		if json.Unmarshal([]byte(rawUser), &user) == nil && user.TenantID != "" {
			return user.TenantID
		}
	}
	tenantID, _, err := a.kv.Get(ctx, KeyTenantID)
	if err != nil {
		a.logger.Warn("session storage read failed", zap.String("key", KeyTenantID), zap.Error(err))
		return ""
	}
	return tenantID
}

// SetTenantID remembers the tenant for anonymous requests.
func (a *Adapter) SetTenantID(ctx context.Context, tenantID string) error {
	if !a.available() {
		return nil
	}
	if tenantID == "" {
		return a.kv.Remove(ctx, KeyTenantID)
	}
	return a.kv.Set(ctx, KeyTenantID, tenantID)
}

func (a *Adapter) discard(ctx context.Context, reason string) {
	a.logger.Info("discarding partial session", zap.String("reason", reason))
	if err := a.Clear(ctx); err != nil {
		a.logger.Warn("failed to discard partial session", zap.Error(err))
	}
}
