package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/rolerouter"
)

type sseEvent struct {
	name string
	data string
}

func openStream(t *testing.T, srv *testServer, query string) (<-chan sseEvent, context.CancelFunc) {
	t.Helper()
	server := httptest.NewServer(srv.router)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/auth/session/events"+query, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: srv.visitor})

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan sseEvent, 32)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				current.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				current.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && current.name != "":
				events <- current
				current = sseEvent{}
			}
		}
	}()
	return events, cancel
}

func nextEvent(t *testing.T, events <-chan sseEvent, skipPings bool) sseEvent {
	t.Helper()
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed")
			if skipPings && ev.name == "ping" {
				continue
			}
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestEventStreamPublishesStateAndNavigation(t *testing.T) {
	srv := newTestServer(t, &stubAuth{}, nil)
	events, cancel := openStream(t, srv, "?allowedRoles=admin,superadmin")
	defer cancel()

	first := nextEvent(t, events, true)
	assert.Equal(t, "state", first.name)

	nav := nextEvent(t, events, true)
	require.Equal(t, "navigate", nav.name)
	var target NavigateEvent
	require.NoError(t, json.Unmarshal([]byte(nav.data), &target))
	assert.Equal(t, rolerouter.Login, target.Location)

	srv.signIn(t, adminUser())
	signedIn := nextEvent(t, events, true)
	require.Equal(t, "state", signedIn.name)
	var event models.SessionEvent
	require.NoError(t, json.Unmarshal([]byte(signedIn.data), &event))
	assert.Equal(t, models.OpSetCredentials, event.Operation)
	assert.True(t, event.State.IsAuthenticated)

	srv.store().Logout(context.Background())
	loggedOut := nextEvent(t, events, true)
	assert.Equal(t, "state", loggedOut.name)
	nav = nextEvent(t, events, true)
	require.Equal(t, "navigate", nav.name)
	assert.Contains(t, nav.data, rolerouter.Login)
}

func TestEventStreamRoleMismatchNavigatesHome(t *testing.T) {
	srv := newTestServer(t, &stubAuth{}, nil)
	srv.signIn(t, studentUser())
	events, cancel := openStream(t, srv, "?allowedRoles=instructor")
	defer cancel()

	assert.Equal(t, "state", nextEvent(t, events, true).name)
	nav := nextEvent(t, events, true)
	require.Equal(t, "navigate", nav.name)
	assert.Contains(t, nav.data, rolerouter.StudentHome)
}

func TestEventStreamSendsKeepAlive(t *testing.T) {
	srv := newTestServer(t, &stubAuth{}, nil, func(d *Dependencies) {
		d.EventsOptions = []EventsOption{WithKeepAlive(20 * time.Millisecond)}
	})
	srv.signIn(t, studentUser())
	events, cancel := openStream(t, srv, "")
	defer cancel()

	assert.Equal(t, "state", nextEvent(t, events, false).name)
	assert.Equal(t, "ping", nextEvent(t, events, false).name)
}

func TestEventStreamUnsubscribesOnDisconnect(t *testing.T) {
	srv := newTestServer(t, &stubAuth{}, nil)
	events, cancel := openStream(t, srv, "")
	nextEvent(t, events, true)
	require.Equal(t, 1, srv.store().Subscribers())

	cancel()
	require.Eventually(t, func() bool {
		return srv.store().Subscribers() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventStreamRejectsUnknownRole(t *testing.T) {
	srv := newTestServer(t, &stubAuth{}, nil)
	rec := srv.do(http.MethodGet, "/auth/session/events?allowedRoles=wizard", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
