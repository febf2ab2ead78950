package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
)

func newContext(accept string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil)
	if accept != "" {
		c.Request.Header.Set("Accept", accept)
	}
	return c, rec
}

func TestRedirectBrowser(t *testing.T) {
	c, rec := newContext("text/html")

	Redirect(c, "/login")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRedirectJSONClient(t *testing.T) {
	c, rec := newContext("application/json")

	Redirect(c, "/dashboard/my-courses")

	require.Equal(t, http.StatusOK, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "/dashboard/my-courses", env.Meta["redirect"])
}

func TestLoading(t *testing.T) {
	c, rec := newContext("")

	Loading(c, 1)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestErrorUsesTypedStatus(t *testing.T) {
	c, rec := newContext("")

	Error(c, appErrors.Clone(appErrors.ErrValidation, "email is required"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext("")
	Error(c, errors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNavigate(t *testing.T) {
	c, rec := newContext("application/json")
	Navigate(c, "/dashboard/admin", map[string]string{"id": "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]string      `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.Data["id"])
	assert.Equal(t, "/dashboard/admin", body.Meta["redirect"])

	c, rec = newContext("")
	Navigate(c, "/dashboard/admin", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/admin", rec.Header().Get("Location"))
}
