package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/rolerouter"
	"github.com/noah-isme/nexlearn-dashboard/internal/service"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

const cookieName = "nexlearn_visitor"

// blockingGateway holds Login until release is closed.
type blockingGateway struct {
	session.AuthGateway
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGateway) Login(context.Context, models.LoginRequest) (*models.AuthData, error) {
	close(b.entered)
	<-b.release
	return &models.AuthData{User: &models.User{ID: "u1", Role: models.RoleAdmin}, Token: "t"}, nil
}

type decisionRecorder struct {
	decisions []string
}

func (d *decisionRecorder) RecordGuardDecision(route, decision string) {
	d.decisions = append(d.decisions, route+" "+decision)
}

func newGuardedRouter(registry *session.Registry, rec GuardRecorder, metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(metrics), visitor.Middleware(visitor.Options{CookieName: cookieName}), Session(registry))
	r.GET("/dashboard/admin", Guard(rec, rolerouter.AdminRoles...), func(c *gin.Context) {
		state, ok := State(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": state.Role()})
	})
	return r
}

func guardedRequest(id, accept string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: id})
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

func TestGuardRedirectsAnonymousVisitorsToLogin(t *testing.T) {
	registry := session.NewRegistry(storage.NewMemoryBackend(), nil)
	rec := &decisionRecorder{}
	router := newGuardedRouter(registry, rec, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, guardedRequest(uuid.NewString(), "text/html"))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, rolerouter.Login, w.Header().Get("Location"))
	assert.Equal(t, []string{"/dashboard/admin redirect"}, rec.decisions)
}

func TestGuardRedirectForJSONClients(t *testing.T) {
	registry := session.NewRegistry(storage.NewMemoryBackend(), nil)
	router := newGuardedRouter(registry, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, guardedRequest(uuid.NewString(), "application/json"))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, rolerouter.Login, body.Meta["redirect"])
}

func TestGuardRoleMismatchRedirectsHome(t *testing.T) {
	registry := session.NewRegistry(storage.NewMemoryBackend(), nil)
	router := newGuardedRouter(registry, nil, nil)
	id := uuid.NewString()
	registry.Get(context.Background(), id).SetCredentials(context.Background(), &models.User{ID: "u1", Role: models.RoleStudent}, "tok")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, guardedRequest(id, ""))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, rolerouter.StudentHome, w.Header().Get("Location"))
}

func TestGuardRendersForAllowedRole(t *testing.T) {
	registry := session.NewRegistry(storage.NewMemoryBackend(), nil)
	metrics := service.NewMetricsService()
	router := newGuardedRouter(registry, nil, metrics)
	id := uuid.NewString()
	registry.Get(context.Background(), id).SetCredentials(context.Background(), &models.User{ID: "u1", Role: models.RoleTenantAdmin}, "tok")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, guardedRequest(id, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role":"tenant_admin"}`, w.Body.String())
	assert.EqualValues(t, 1, metrics.Snapshot().RequestsTotal)
}

func TestGuardShowsLoadingWhileOperationInFlight(t *testing.T) {
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	registry := session.NewRegistry(storage.NewMemoryBackend(), func(gateway.CredentialSource) session.AuthGateway { return gw })
	router := newGuardedRouter(registry, nil, nil)
	id := uuid.NewString()
	store := registry.Get(context.Background(), id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Login(context.Background(), models.LoginRequest{})
	}()
	<-gw.entered

	w := httptest.NewRecorder()
	router.ServeHTTP(w, guardedRequest(id, ""))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.NotContains(t, w.Body.String(), "role")

	close(gw.release)
	<-done

	w = httptest.NewRecorder()
	router.ServeHTTP(w, guardedRequest(id, ""))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuardWithoutSessionMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Guard(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSessionIssuesVisitorAndStore(t *testing.T) {
	registry := session.NewRegistry(nil, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(visitor.Middleware(visitor.Options{CookieName: cookieName}), Session(registry))
	r.GET("/x", func(c *gin.Context) {
		if Store(c) == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, registry.Len())
}
