package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// Redirect tells the client to navigate. Browsers get a 303 with Location,
// JSON clients get the target in the envelope so they can route themselves.
func Redirect(c *gin.Context, location string) {
	noStore(c)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, Envelope{Meta: map[string]interface{}{"redirect": location}})
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

// Navigate reports data and sends the client on to location: JSON clients
// get both in the envelope, browsers follow a 303.
func Navigate(c *gin.Context, location string, data interface{}) {
	noStore(c)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, Envelope{Data: data, Meta: map[string]interface{}{"redirect": location}})
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

// Loading answers while an auth operation for the visitor is still in flight.
func Loading(c *gin.Context, retryAfterSeconds int) {
	noStore(c)
	if retryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	c.JSON(http.StatusAccepted, Envelope{Meta: map[string]interface{}{"loading": true}})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}
