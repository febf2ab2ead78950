package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
	"github.com/noah-isme/nexlearn-dashboard/pkg/response"
)

// ContextStoreKey is the gin context key storing the visitor's session store.
const ContextStoreKey = "sessionStore"

// Session attaches the visitor's store to the request. It must run after the
// visitor middleware.
func Session(registry *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := visitor.Value(c)
		if id == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "visitor not identified"))
			c.Abort()
			return
		}

		c.Set(ContextStoreKey, registry.Get(c.Request.Context(), id))
		c.Next()
	}
}

// Store returns the store attached by Session, or nil.
func Store(c *gin.Context) *session.Store {
	if v, ok := c.Get(ContextStoreKey); ok {
		if store, ok := v.(*session.Store); ok {
			return store
		}
	}
	return nil
}
