package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/service"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

const testCookie = "nexlearn_visitor"

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *errorBody             `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// stubAuth answers every remote auth call from its fields.
type stubAuth struct {
	mu         sync.Mutex
	authData   *models.AuthData
	authErr    error
	profile    *models.User
	message    string
	err        error
	avatarUser *models.User
	avatarData []byte
	logins     int
	tenants    []string
}

func (s *stubAuth) Login(ctx context.Context, _ models.LoginRequest) (*models.AuthData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	s.tenants = append(s.tenants, gateway.TenantFromContext(ctx))
	return s.authData, s.authErr
}

func (s *stubAuth) Register(ctx context.Context, _ models.RegisterRequest) (*models.AuthData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = append(s.tenants, gateway.TenantFromContext(ctx))
	return s.authData, s.authErr
}

func (s *stubAuth) Profile(context.Context) (*models.User, error) {
	return s.profile, s.err
}

func (s *stubAuth) UpdateProfile(context.Context, models.ProfileUpdateRequest) (*models.User, error) {
	return s.profile, s.err
}

func (s *stubAuth) ChangePassword(context.Context, models.ChangePasswordRequest) (string, error) {
	return s.message, s.err
}

func (s *stubAuth) ForgotPassword(context.Context, models.ForgotPasswordRequest) (string, error) {
	return s.message, s.err
}

func (s *stubAuth) ResetPassword(context.Context, models.ResetPasswordRequest) (string, error) {
	return s.message, s.err
}

func (s *stubAuth) UploadAvatar(_ context.Context, _ string, data []byte) (*models.User, error) {
	s.mu.Lock()
	s.avatarData = data
	s.mu.Unlock()
	return s.avatarUser, s.err
}

type testServer struct {
	router   *gin.Engine
	registry *session.Registry
	backend  *storage.MemoryBackend
	metrics  *service.MetricsService
	visitor  string
}

type serverOption func(*Dependencies)

func newTestServer(t *testing.T, auth session.AuthGateway, users UsersAPI, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := storage.NewMemoryBackend()
	registry := session.NewRegistry(backend, func(gateway.CredentialSource) session.AuthGateway {
		return auth
	})
	metrics := service.NewMetricsService()
	deps := Dependencies{
		Registry: registry,
		Metrics:  metrics,
		Users: func(gateway.CredentialSource) UsersAPI {
			return users
		},
		Visitor:           visitor.Options{CookieName: testCookie},
		ExposeCredentials: true,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	router := gin.New()
	RegisterRoutes(router, deps)
	return &testServer{router: router, registry: registry, backend: backend, metrics: metrics, visitor: uuid.NewString()}
}

func (s *testServer) store() *session.Store {
	return s.registry.Get(context.Background(), s.visitor)
}

func (s *testServer) signIn(t *testing.T, user *models.User) {
	t.Helper()
	s.store().SetCredentials(context.Background(), user, "token-1")
}

func (s *testServer) do(method, path string, body interface{}, accept string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.AddCookie(&http.Cookie{Name: testCookie, Value: s.visitor})
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeSession(t *testing.T, env responseEnvelope) models.SessionState {
	t.Helper()
	var payload SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload.Session
}

func adminUser() *models.User {
	return &models.User{ID: "u-admin", TenantID: "tenant-a", Email: "admin@nexlearn.io", FirstName: "Ada", Role: models.RoleAdmin}
}

func instructorUser() *models.User {
	return &models.User{ID: "u-inst", TenantID: "tenant-a", Email: "ins@nexlearn.io", FirstName: "Ian", Role: models.RoleInstructor}
}

func studentUser() *models.User {
	return &models.User{ID: "u-stu", TenantID: "tenant-a", Email: "stu@nexlearn.io", FirstName: "Sam", Role: models.RoleStudent}
}
