package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/middleware"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
)

func storeFromContext(c *gin.Context) (*session.Store, bool) {
	store := middleware.Store(c)
	if store == nil {
		return nil, false
	}
	return store, true
}

// remoteError converts a rejected session operation or a failed gateway call
// into an application error. Client errors keep the remote status, anything
// else is reported as a bad gateway.
func remoteError(err error) error {
	message := ""
	status := 0

	var failure *session.Failure
	var gwErr *gateway.Error
	switch {
	case errors.As(err, &failure):
		message, status = failure.Message, failure.Status
	case errors.As(err, &gwErr):
		message, status = gateway.MessageOr(err, appErrors.ErrUpstream.Message), gwErr.Status
	default:
		return err
	}

	return appErrors.FromStatus(err, status, message)
}

func sessionMissing() error {
	return appErrors.Clone(appErrors.ErrInternal, "session not attached")
}
