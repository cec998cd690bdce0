package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
)

type executedCommand struct {
	actor *domain.Actor
	cmd   domain.Command
}

type fakeService struct {
	mu       sync.Mutex
	status   domain.Status
	err      error
	executed []executedCommand
}

func (f *fakeService) Status(_ context.Context) *domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.status.Clone()
}

func (f *fakeService) Execute(
	_ context.Context,
	actor *domain.Actor,
	cmd domain.Command,
) (*domain.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.executed = append(f.executed, executedCommand{actor: actor.Clone(), cmd: cmd})
	if f.err != nil {
		return nil, f.err
	}

	if active, ok := cmd.RelayTarget(); ok {
		f.status.RelayActive = active
	}

	return f.status.Clone(), nil
}

func (f *fakeService) commands() []executedCommand {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]executedCommand(nil), f.executed...)
}

func newTestServer(t *testing.T, svc Service, options Options) http.Handler {
	t.Helper()

	s, err := NewServer(context.Background(), svc, options)
	require.NoError(t, err)

	return s.Handler()
}

func postAction(handler http.Handler, cmd string, setup func(*http.Request)) *httptest.ResponseRecorder {
	form := url.Values{"cmd": {cmd}}
	req := httptest.NewRequest(http.MethodPost, "/action", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if setup != nil {
		setup(req)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	svc := &fakeService{status: domain.Status{
		Timestamp:       time.Unix(1700000000, 0),
		AlcoholDetected: true,
		RelayActive:     false,
		Simulation:      true,
	}}
	handler := newTestServer(t, svc, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["alcohol_detected"])
	require.Equal(t, false, body["relay_active"])
	require.Equal(t, true, body["simulation"])
	require.InDelta(t, 1700000000, body["timestamp"], 0)
}

func TestIndexPage(t *testing.T) {
	t.Parallel()

	t.Run("real hardware hides simulation buttons", func(t *testing.T) {
		t.Parallel()

		handler := newTestServer(t, &fakeService{}, Options{PollInterval: 2 * time.Second})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "car.local:5000"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		page := rec.Body.String()
		require.Regexp(t, `const pollMillis =\s*2000\s*;`, page)
		require.Contains(t, page, "Polling every 2s")
		require.Contains(t, page, "car.local:5000")
		require.Contains(t, page, `value="lock"`)
		require.Contains(t, page, `value="unlock"`)
		require.NotContains(t, page, `value="simulate_on"`)
	})

	t.Run("simulation shows simulation buttons", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{status: domain.Status{Simulation: true}}
		handler := newTestServer(t, svc, Options{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `value="simulate_on"`)
		require.Contains(t, rec.Body.String(), `value="simulate_off"`)
		require.Regexp(t, `const pollMillis =\s*1000\s*;`, rec.Body.String())
	})
}

func TestAction(t *testing.T) {
	t.Parallel()

	t.Run("runs command and redirects", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{status: domain.Status{RelayActive: true}}
		handler := newTestServer(t, svc, Options{})

		rec := postAction(handler, "lock", nil)

		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))

		commands := svc.commands()
		require.Len(t, commands, 1)
		require.Equal(t, domain.CommandLock, commands[0].cmd)
		require.Equal(t, anonymousUsername, commands[0].actor.Username)
		require.NotEmpty(t, commands[0].actor.Hostname)
		require.False(t, svc.Status(context.Background()).RelayActive)
	})

	t.Run("unknown command is ignored", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{}
		handler := newTestServer(t, svc, Options{})

		rec := postAction(handler, "self_destruct", nil)

		require.Equal(t, http.StatusFound, rec.Code)
		require.Empty(t, svc.commands())
	})

	t.Run("rejected command still redirects", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{err: domain.ErrNotSimulated}
		handler := newTestServer(t, svc, Options{})

		rec := postAction(handler, "simulate_on", nil)

		require.Equal(t, http.StatusFound, rec.Code)
		require.Len(t, svc.commands(), 1)
	})
}

func TestActionBasicAuth(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	options := Options{Auth: config.Auth{Username: "driver", PasswordHash: string(hash)}}

	tests := []struct {
		name       string
		username   string
		password   string
		noAuth     bool
		wantStatus int
		wantRuns   int
	}{
		{name: "missing credentials", noAuth: true, wantStatus: http.StatusUnauthorized},
		{name: "wrong user", username: "guest", password: "s3cret", wantStatus: http.StatusUnauthorized},
		{name: "wrong password", username: "driver", password: "nope", wantStatus: http.StatusUnauthorized},
		{name: "valid", username: "driver", password: "s3cret", wantStatus: http.StatusFound, wantRuns: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{}
			handler := newTestServer(t, svc, options)

			rec := postAction(handler, "unlock", func(req *http.Request) {
				if !tt.noAuth {
					req.SetBasicAuth(tt.username, tt.password)
				}
			})

			require.Equal(t, tt.wantStatus, rec.Code)

			commands := svc.commands()
			require.Len(t, commands, tt.wantRuns)

			if tt.wantRuns > 0 {
				require.Equal(t, "driver", commands[0].actor.Username)
			}
		})
	}

	t.Run("status stays public", func(t *testing.T) {
		t.Parallel()

		handler := newTestServer(t, &fakeService{}, options)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestObservabilityEndpoints(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, &fakeService{}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
