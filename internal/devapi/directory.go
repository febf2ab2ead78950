package devapi

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

type account struct {
	user models.User
	hash []byte
}

type resetGrant struct {
	tenantID  string
	userID    string
	expiresAt time.Time
}

// directory is the in-memory user table, scoped per tenant.
type directory struct {
	mu      sync.RWMutex
	byID    map[string]*account
	byEmail map[string]string
	resets  map[string]resetGrant
}

func newDirectory() *directory {
	return &directory{
		byID:    make(map[string]*account),
		byEmail: make(map[string]string),
		resets:  make(map[string]resetGrant),
	}
}

func emailKey(tenantID, email string) string {
	return tenantID + "|" + strings.ToLower(strings.TrimSpace(email))
}

func (d *directory) insert(acc *account) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := emailKey(acc.user.TenantID, acc.user.Email)
	if _, exists := d.byEmail[key]; exists {
		return false
	}
	d.byID[acc.user.ID] = acc
	d.byEmail[key] = acc.user.ID
	return true
}

func (d *directory) byEmailIn(tenantID, email string) (*account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[emailKey(tenantID, email)]
	if !ok {
		return nil, false
	}
	acc := d.byID[id]
	return acc.copy(), true
}

func (d *directory) get(tenantID, id string) (*account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[id]
	if !ok || acc.user.TenantID != tenantID {
		return nil, false
	}
	return acc.copy(), true
}

// update applies fn to the stored account and returns the result.
func (d *directory) update(tenantID, id string, fn func(*account)) (*account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[id]
	if !ok || acc.user.TenantID != tenantID {
		return nil, false
	}
	fn(acc)
	return acc.copy(), true
}

func (d *directory) remove(tenantID, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[id]
	if !ok || acc.user.TenantID != tenantID {
		return false
	}
	delete(d.byID, id)
	delete(d.byEmail, emailKey(tenantID, acc.user.Email))
	return true
}

// list returns the tenant's users matching search and role, ordered by
// creation time.
func (d *directory) list(tenantID, search string, role models.UserRole) []models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	users := make([]models.User, 0, len(d.byID))
	for _, acc := range d.byID {
		u := acc.user
		if u.TenantID != tenantID {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		if needle != "" && !matches(u, needle) {
			continue
		}
		users = append(users, *u.Clone())
	}

	sort.Slice(users, func(i, j int) bool {
		a, b := users[i].CreatedAt, users[j].CreatedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return users[i].Email < users[j].Email
	})
	return users
}

func matches(u models.User, needle string) bool {
	for _, field := range []string{u.Email, u.Username, u.FirstName, u.LastName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (d *directory) grantReset(token string, grant resetGrant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets[token] = grant
}

// redeemReset consumes token. Expired tokens are consumed too.
func (d *directory) redeemReset(token string, now time.Time) (resetGrant, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	grant, ok := d.resets[token]
	if !ok {
		return resetGrant{}, false
	}
	delete(d.resets, token)
	if now.After(grant.expiresAt) {
		return resetGrant{}, false
	}
	return grant, true
}

func (a *account) copy() *account {
	if a == nil {
		return nil
	}
	return &account{user: *a.user.Clone(), hash: append([]byte(nil), a.hash...)}
}
