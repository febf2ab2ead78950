package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/guard"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
	"github.com/noah-isme/nexlearn-dashboard/pkg/response"
)

const (
	defaultEventBuffer = 16
	defaultKeepAlive   = 15 * time.Second
)

// DropRecorder counts session events dropped on slow streams.
type DropRecorder interface {
	RecordDroppedEvent()
}

// EventsOption customises the events handler.
type EventsOption func(*EventsHandler)

// WithEventBuffer sets how many events a stream queues before dropping.
func WithEventBuffer(n int) EventsOption {
	return func(h *EventsHandler) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithKeepAlive sets the ping interval.
func WithKeepAlive(d time.Duration) EventsOption {
	return func(h *EventsHandler) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// EventsHandler streams session changes and guard navigations over SSE.
type EventsHandler struct {
	drops     DropRecorder
	logger    *zap.Logger
	buffer    int
	keepAlive time.Duration
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(drops DropRecorder, logger *zap.Logger, opts ...EventsOption) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &EventsHandler{
		drops:     drops,
		logger:    logger,
		buffer:    defaultEventBuffer,
		keepAlive: defaultKeepAlive,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NavigateEvent is the payload of a navigate event.
type NavigateEvent struct {
	Location string `json:"location"`
}

type streamMessage struct {
	event string
	data  interface{}
}

// Stream godoc
// @Summary Session event stream
// @Description Server-sent events: state after every session commit and navigate when the route guard redirects
// @Tags Authentication
// @Produce text/event-stream
// @Param allowedRoles query string false "Comma separated roles the watching page admits"
// @Success 200 "text/event-stream"
// @Failure 400 {object} response.Envelope
// @Router /auth/session/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	allowed, err := parseRoles(c.Query("allowedRoles"))
	if err != nil {
		response.Error(c, err)
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}

	logger := h.logger.With(zap.String("visitor_id", visitor.Value(c)))
	queue := make(chan streamMessage, h.buffer)
	enqueue := func(msg streamMessage) {
		select {
		case queue <- msg:
		default:
			logger.Warn("session event dropped", zap.String("event", msg.event))
			if h.drops != nil {
				h.drops.RecordDroppedEvent()
			}
		}
	}

	reactor := guard.NewReactor(guard.NavigatorFunc(func(location string) {
		enqueue(streamMessage{event: "navigate", data: NavigateEvent{Location: location}})
	}), allowed...)

	unsubscribe := reactor.Attach(sessionStream{store: store, forward: func(e models.SessionEvent) {
		enqueue(streamMessage{event: "state", data: e})
	}})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			c.SSEvent(msg.event, msg.data)
			c.Writer.Flush()
		case now := <-ticker.C:
			c.SSEvent("ping", now.UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}

// sessionStream forwards every watched event to the client before the
// reactor sees it, so a navigate always follows the state that caused it.
type sessionStream struct {
	store   *session.Store
	forward func(models.SessionEvent)
}

func (s sessionStream) Watch(fn func(models.SessionEvent)) func() {
	return s.store.Watch(func(e models.SessionEvent) {
		s.forward(e)
		fn(e)
	})
}

func parseRoles(raw string) ([]models.UserRole, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var roles []models.UserRole
	for _, part := range strings.Split(raw, ",") {
		role := models.UserRole(strings.TrimSpace(part))
		if role == "" {
			continue
		}
		if !role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role "+string(role))
		}
		roles = append(roles, role)
	}
	return roles, nil
}
