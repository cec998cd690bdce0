package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
	"github.com/oshokin/alco-lock/internal/logger"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Service abstracts the business operations the web layer depends on.
type Service interface {
	Status(ctx context.Context) *domain.Status
	Execute(ctx context.Context, actor *domain.Actor, cmd domain.Command) (*domain.Status, error)
}

// Options configures the web server.
type Options struct {
	// PollInterval is how often the page fetches /status.
	PollInterval time.Duration
	// Auth protects POST /action when credentials are configured.
	Auth config.Auth
}

// Server serves the status page, the JSON status and the action endpoint.
type Server struct {
	echo      *echo.Echo
	service   Service
	options   Options
	startTime time.Time
}

// contextKeyUsername is the echo context key holding the basic-auth user.
const contextKeyUsername = "username"

// anonymousUsername is recorded as actor for unauthenticated web commands.
const anonymousUsername = "web"

// NewServer builds the echo instance and registers the routes.
func NewServer(ctx context.Context, service Service, options Options) (*Server, error) {
	templates, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	if options.PollInterval <= 0 {
		options.PollInterval = config.DefaultPollInterval
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{templates: templates}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(ctx))

	s := &Server{
		echo:      e,
		service:   service,
		options:   options,
		startTime: time.Now(),
	}

	s.registerRoutes()

	return s, nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on address and blocks until the server stops.
// It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// actionMiddleware returns the middleware chain for state-changing routes.
func (s *Server) actionMiddleware() []echo.MiddlewareFunc {
	if !s.options.Auth.Enabled() {
		return nil
	}

	return []echo.MiddlewareFunc{middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm:     "alco-lock",
		Validator: s.validateCredentials,
	})}
}

// validateCredentials checks basic-auth credentials against the bcrypt hash.
func (s *Server) validateCredentials(username, password string, c echo.Context) (bool, error) {
	auth := s.options.Auth

	if subtle.ConstantTimeCompare([]byte(username), []byte(auth.Username)) != 1 {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(password))
	switch {
	case err == nil:
		c.Set(contextKeyUsername, username)

		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

// requestLogger logs every request through the zap logger from ctx.
func requestLogger(ctx context.Context) echo.MiddlewareFunc {
	ctx = logger.WithName(ctx, "http")

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			kvs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}

			if v.Error != nil {
				logger.WarnKV(ctx, "Request failed", append(kvs, "error", v.Error)...)

				return nil
			}

			logger.DebugKV(ctx, "Request served", kvs...)

			return nil
		},
	})
}

// templateRenderer adapts html/template to echo.Renderer.
type templateRenderer struct {
	templates *template.Template
}

// Render executes the named template.
func (r *templateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
