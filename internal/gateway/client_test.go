package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/pkg/config"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/requestid"
)

type staticCreds struct {
	token  string
	tenant string
}

func (s staticCreds) Token(context.Context) string    { return s.token }
func (s staticCreds) TenantID(context.Context) string { return s.tenant }

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestClient(t *testing.T, handler http.HandlerFunc, defaultTenant string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.APIConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, DefaultTenantID: defaultTenant},
		WithHTTPClient(srv.Client()))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLoginSendsCredentialsAndHeaders(t *testing.T) {
	var seen *http.Request
	var body models.LoginRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Login successful",
			"data": map[string]interface{}{
				"token": "t1",
				"user":  map[string]interface{}{"id": "u1", "email": "ana@example.com", "role": "student"},
			},
		})
	}, "")

	ctx := requestid.WithContext(context.Background(), "req-42")
	data, err := client.Auth(staticCreds{tenant: "tenant-a"}).Login(ctx, models.LoginRequest{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "t1", data.Token)
	assert.Equal(t, models.RoleStudent, data.User.Role)
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "/auth/login", seen.URL.Path)
	assert.Equal(t, "ana@example.com", body.Email)
	assert.Empty(t, seen.Header.Get("Authorization"))
	assert.Equal(t, "tenant-a", seen.Header.Get(TenantHeader))
	assert.Equal(t, "req-42", seen.Header.Get(requestid.Header))
}

func TestLoginFailureCarriesServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "Invalid credentials"})
	}, "")

	_, err := client.Auth(nil).Login(context.Background(), models.LoginRequest{Email: "a@b.co", Password: "x"})
	require.Error(t, err)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusUnauthorized, gwErr.Status)
	assert.True(t, gwErr.FromServer)
	assert.Equal(t, "Invalid credentials", MessageOr(err, "Login failed. Please try again."))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestErrorWithoutMessageUsesGenericText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<html>oops</html>")
	}, "")

	_, err := client.Auth(nil).Profile(context.Background())
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, GenericMessage, gwErr.Message)
	assert.False(t, gwErr.FromServer)
	assert.Equal(t, "Failed to fetch profile.", MessageOr(err, "Failed to fetch profile."))
}

func TestSuccessFalseIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "Email already registered"})
	}, "")

	_, err := client.Auth(nil).Register(context.Background(), models.RegisterRequest{Email: "a@b.co"})
	assert.Equal(t, "Email already registered", MessageOr(err, "Registration failed. Please try again."))
}

func TestLoginWithoutTokenIsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "ok", "data": map[string]interface{}{}})
	}, "")

	_, err := client.Auth(nil).Login(context.Background(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, "Login failed. Please try again.", MessageOr(err, "Login failed. Please try again."))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := New(config.APIConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.Auth(nil).Profile(context.Background())
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Zero(t, gwErr.Status)
	assert.Error(t, gwErr.Unwrap())
	assert.Equal(t, "Failed to fetch profile.", MessageOr(err, "Failed to fetch profile."))
}

func TestTenantHeaderResolution(t *testing.T) {
	cases := []struct {
		name          string
		creds         CredentialSource
		defaultTenant string
		requestTenant string
		wantTenant    string
		wantAuth      string
	}{
		{name: "visitor tenant wins", creds: staticCreds{token: "t", tenant: "tenant-a"}, defaultTenant: "dev", wantTenant: "tenant-a", wantAuth: "Bearer t"},
		{name: "default tenant fallback", creds: staticCreds{}, defaultTenant: "dev", wantTenant: "dev"},
		{name: "omitted when unknown", creds: nil, wantTenant: ""},
		{name: "request tenant overrides visitor", creds: staticCreds{tenant: "tenant-a"}, requestTenant: "tenant-b", wantTenant: "tenant-b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var header http.Header
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				header = r.Header.Clone()
				writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "sent"})
			}, tc.defaultTenant)

			ctx := WithTenant(context.Background(), tc.requestTenant)
			msg, err := client.Auth(tc.creds).ForgotPassword(ctx, models.ForgotPasswordRequest{Email: "a@b.co"})
			require.NoError(t, err)
			assert.Equal(t, "sent", msg)
			assert.Equal(t, tc.wantTenant, header.Get(TenantHeader))
			assert.Equal(t, tc.wantTenant != "", len(header.Values(TenantHeader)) > 0)
			assert.Equal(t, tc.wantAuth, header.Get("Authorization"))
		})
	}
}

func TestProfileAcceptsBothDataShapes(t *testing.T) {
	for name, data := range map[string]interface{}{
		"bare user":    map[string]interface{}{"id": "u1", "firstName": "Ana"},
		"wrapped user": map[string]interface{}{"user": map[string]interface{}{"id": "u1", "firstName": "Ana"}},
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": data})
			}, "")

			user, err := client.Auth(staticCreds{token: "tok"}).Profile(context.Background())
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, "Ana", user.FirstName)
		})
	}
}

func TestProfileWithoutData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "ok"})
	}, "")

	user, err := client.Auth(nil).Profile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUploadAvatarSendsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("avatar")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "me.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"user": map[string]interface{}{"id": "u1", "avatar": "/uploads/avatars/x.png"}},
		})
	}, "")

	user, err := client.Auth(staticCreds{token: "tok"}).UploadAvatar(context.Background(), "me.png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/x.png", user.Avatar)
}

func TestValidateAvatar(t *testing.T) {
	contentType, err := ValidateAvatar(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	_, err = ValidateAvatar(nil)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = ValidateAvatar([]byte("plain text is not an image"))
	assert.Equal(t, http.StatusUnsupportedMediaType, appErrors.FromError(err).Status)

	big := make([]byte, MaxAvatarBytes+1)
	copy(big, pngHeader)
	_, err = ValidateAvatar(big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErrors.FromError(err).Status)
}

func TestUsersList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "ana lee", r.URL.Query().Get("search"))
		assert.Empty(t, r.URL.Query().Get("role"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"users":      []map[string]interface{}{{"id": "u1"}, {"id": "u2"}},
				"pagination": map[string]interface{}{"currentPage": 2, "totalPages": 3, "totalUsers": 22, "limit": 10},
			},
		})
	}, "")

	list, err := client.Users(staticCreds{token: "tok"}).List(context.Background(), models.UserFilter{Page: 2, Search: "ana lee", Role: "all"})
	require.NoError(t, err)
	assert.Len(t, list.Users, 2)
	require.NotNil(t, list.Pagination)
	assert.Equal(t, 22, list.Pagination.TotalUsers)
}

func TestUsersMutations(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "deleted"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]interface{}{"user": map[string]interface{}{"id": "u9", "role": "instructor"}}})
	}, "")
	users := client.Users(staticCreds{token: "tok"})
	ctx := context.Background()

	created, err := users.Create(ctx, models.CreateUserRequest{Email: "n@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "u9", created.ID)

	_, err = users.Get(ctx, "u9")
	require.NoError(t, err)
	name := "Nia"
	_, err = users.Update(ctx, "u9", models.UpdateUserRequest{FirstName: &name})
	require.NoError(t, err)
	changed, err := users.ChangeRole(ctx, "u9", models.RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, changed.Role)
	require.NoError(t, users.Delete(ctx, "u9"))

	assert.Equal(t, []string{
		"POST /users",
		"GET /users/u9",
		"PUT /users/u9",
		"PUT /users/u9/role",
		"DELETE /users/u9",
	}, calls)
}
