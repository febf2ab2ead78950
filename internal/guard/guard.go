// Package guard decides whether a dashboard route may render for a session.
package guard

import (
	"sync"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/rolerouter"
)

// Kind is the outcome of an evaluation.
type Kind int

const (
	ShowLoading Kind = iota
	Redirect
	Render
)

func (k Kind) String() string {
	switch k {
	case ShowLoading:
		return "loading"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is what a route should do. Location is set for redirects only.
type Decision struct {
	Kind     Kind   `json:"-"`
	Location string `json:"location,omitempty"`
}

// Evaluate applies the guard rules in order: an in-flight operation shows
// loading, a missing session goes to login, a role outside allowed goes to
// the role's own home. An empty allowed list admits any signed-in user.
func Evaluate(state models.SessionState, allowed ...models.UserRole) Decision {
	if state.IsLoading {
		return Decision{Kind: ShowLoading}
	}
	if !state.IsAuthenticated || state.User == nil {
		return Decision{Kind: Redirect, Location: rolerouter.Login}
	}
	if len(allowed) > 0 && !contains(allowed, state.User.Role) {
		return Decision{Kind: Redirect, Location: rolerouter.HomeFor(state.User.Role)}
	}
	return Decision{Kind: Render}
}

func contains(roles []models.UserRole, role models.UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Navigator performs a client-side navigation. Implementations must not
// block.
type Navigator interface {
	Navigate(location string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(location string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(location string) { f(location) }

// Source is a session that can be watched. Watch delivers the current state
// and then every later change, in commit order.
type Source interface {
	Watch(fn func(models.SessionEvent)) func()
}

// Reactor re-evaluates a route on every session change and navigates once
// per transition into a redirect.
type Reactor struct {
	allowed []models.UserRole
	nav     Navigator

	mu      sync.Mutex
	last    Decision
	started bool
}

// NewReactor builds a reactor for a route admitting allowed.
func NewReactor(nav Navigator, allowed ...models.UserRole) *Reactor {
	return &Reactor{allowed: append([]models.UserRole(nil), allowed...), nav: nav}
}

// Observe evaluates state and reports whether a navigation was issued.
func (r *Reactor) Observe(state models.SessionState) (Decision, bool) {
	decision := Evaluate(state, r.allowed...)

	r.mu.Lock()
	changed := !r.started || decision != r.last
	r.last = decision
	r.started = true
	r.mu.Unlock()

	if !changed || decision.Kind != Redirect {
		return decision, false
	}
	if r.nav != nil {
		r.nav.Navigate(decision.Location)
	}
	return decision, true
}

// Last returns the most recent decision.
func (r *Reactor) Last() Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Attach evaluates the current state of src and then follows its events
// until the returned function is called.
func (r *Reactor) Attach(src Source) func() {
	return src.Watch(func(e models.SessionEvent) {
		r.Observe(e.State)
	})
}
