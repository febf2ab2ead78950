package visitor

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	contextKey = "visitor_id"
	cookieTTL  = 365 * 24 * time.Hour
)

// Options controls the visitor cookie.
type Options struct {
	CookieName string
	Secure     bool
}

// Middleware identifies the browser behind each request with a long-lived
// cookie, issuing a fresh random identifier when the cookie is missing or
// malformed.
func Middleware(opts Options) gin.HandlerFunc {
	name := opts.CookieName
	if name == "" {
		name = "nexlearn_visitor"
	}

	return func(c *gin.Context) {
		id, err := c.Cookie(name)
		if err != nil || !valid(id) {
			id = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cookieTTL.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		c.Set(contextKey, id)
		c.Next()
	}
}

// Value returns the visitor ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// Set stores a visitor ID on the context. Tests use it to skip the cookie round trip.
func Set(c *gin.Context, id string) {
	c.Set(contextKey, id)
}

func valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
