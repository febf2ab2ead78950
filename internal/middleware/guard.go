package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/nexlearn-dashboard/internal/guard"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
	"github.com/noah-isme/nexlearn-dashboard/pkg/response"
)

// ContextStateKey is the gin context key storing the session state the
// guard admitted.
const ContextStateKey = "sessionState"

// loadingRetrySeconds is advertised in Retry-After while an auth operation
// is in flight.
const loadingRetrySeconds = 1

// GuardRecorder counts guard outcomes.
type GuardRecorder interface {
	RecordGuardDecision(route, decision string)
}

// Guard gates a route on the visitor's session. Render continues the chain,
// Redirect answers with the redirect target, ShowLoading answers 202 with
// Retry-After. Children never run unless the decision is Render.
func Guard(rec GuardRecorder, allowed ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := Store(c)
		if store == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInternal, "session not attached"))
			c.Abort()
			return
		}

		state := store.State()
		decision := guard.Evaluate(state, allowed...)
		if rec != nil {
			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			rec.RecordGuardDecision(route, decision.Kind.String())
		}

		switch decision.Kind {
		case guard.Render:
			c.Set(ContextStateKey, state)
			c.Next()
		case guard.Redirect:
			response.Redirect(c, decision.Location)
			c.Abort()
		default:
			response.Loading(c, loadingRetrySeconds)
			c.Abort()
		}
	}
}

// State returns the state admitted by Guard.
func State(c *gin.Context) (models.SessionState, bool) {
	if v, ok := c.Get(ContextStateKey); ok {
		if state, ok := v.(models.SessionState); ok {
			return state, true
		}
	}
	return models.SessionState{}, false
}
