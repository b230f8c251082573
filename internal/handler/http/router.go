package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/ecommerce-accounts/internal/auth"
	"github.com/utafrali/ecommerce-accounts/pkg/health"
	"github.com/utafrali/ecommerce-accounts/pkg/middleware"
)

// RouterConfig carries the dependencies of NewRouter.
type RouterConfig struct {
	ServiceName string
	Users       UserService
	Tokens      TokenParser
	Health      *health.Handler
	Logger      *slog.Logger
	CORS        middleware.CORSConfig
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
}

// TokenParser validates session tokens. *auth.Credentials satisfies it.
type TokenParser interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// NewRouter creates a chi router with all account routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	metrics := middleware.NewHTTPMetrics(cfg.Registry, cfg.ServiceName)

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(metrics.Middleware)

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))

	users := NewUserHandler(cfg.Users, cfg.Logger)
	requireAuth := middleware.Auth(tokenValidator(cfg.Tokens))

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public
		r.Post("/", users.Create)
		r.Post("/sign-in", users.SignIn)
		r.Get("/verify-email", users.VerifyEmail)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/", users.List)
			r.Get("/search", users.Search)
			r.Get("/{id}", users.Get)
			r.Patch("/{id}", users.Update)
			r.Delete("/{id}", users.Delete)
		})
	})

	return r
}

// tokenValidator bridges the session token format to the auth middleware.
func tokenValidator(tokens TokenParser) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
		}, nil
	}
}
