package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/harborlight/beacon/pkg/audit"
	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/guard"
	"github.com/harborlight/beacon/pkg/httputil"
	"github.com/harborlight/beacon/pkg/middleware"
	"github.com/harborlight/beacon/pkg/observability"
	"github.com/harborlight/beacon/pkg/session"
	"github.com/harborlight/beacon/pkg/submissions"
	"github.com/harborlight/beacon/pkg/users"
)

// Deps are the wired components the server routes to.
type Deps struct {
	Guard       *guard.Middleware
	AuthFlow    *session.Handler
	Users       *users.Handler
	Submissions *submissions.Handler
	Audit       *audit.Handler
	Health      *observability.HealthChecker
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
	RateLimiter *middleware.RateLimiter
	Logger      *observability.Logger

	// TracingEnabled wraps the whole surface in OTel HTTP spans.
	TracingEnabled bool
}

// Server is the assembled HTTP server.
type Server struct {
	router *mux.Router
	deps   Deps
}

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMethodNotAllowed(w)
	})

	s.router.Use(mux.MiddlewareFunc(middleware.RequestID(s.deps.Logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.deps.Logger)))
	if s.deps.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(s.deps.Metrics)))
	}

	// Operational endpoints.
	if s.deps.Health != nil {
		s.router.HandleFunc("/healthz", s.deps.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.deps.Health.Readiness).Methods("GET")
	}
	if s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Registry)).Methods("GET")
	}

	// Public intake, rate limited per client.
	intake := http.Handler(http.HandlerFunc(s.deps.Submissions.Intake))
	if s.deps.RateLimiter != nil {
		intake = s.deps.RateLimiter.Middleware(intake)
	}
	s.router.Handle("/submissions", intake).Methods("POST")

	// Auth flow.
	s.router.HandleFunc("/auth/login", s.deps.AuthFlow.Login).Methods("GET")
	s.router.HandleFunc("/auth/callback", s.deps.AuthFlow.Callback).Methods("GET")
	s.router.HandleFunc("/auth/logout", s.deps.AuthFlow.Logout).Methods("POST")
	s.router.HandleFunc("/auth/reset", s.deps.AuthFlow.Reset).Methods("POST")

	// Everything under /admin requires a signed-in admin.
	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.MethodNotAllowedHandler = s.router.MethodNotAllowedHandler
	admin.Use(mux.MiddlewareFunc(s.deps.Guard.Authenticate))

	// Any admin role sees submissions, narrowed to their region.
	admin.HandleFunc("/submissions", s.deps.Submissions.List).Methods("GET")
	admin.HandleFunc("/submissions/{id}/status", s.deps.Submissions.UpdateStatus).Methods("PATCH")

	// User management and the audit trail are top-scope only.
	topScope := s.deps.Guard.RequireRole(auth.RoleSuperAdmin)
	admin.Handle("/users", topScope(http.HandlerFunc(s.deps.Users.Create))).Methods("POST")
	admin.Handle("/users", topScope(http.HandlerFunc(s.deps.Users.List))).Methods("GET")
	admin.Handle("/users/{id}", topScope(http.HandlerFunc(s.deps.Users.Update))).Methods("PATCH")
	admin.Handle("/users/{id}", topScope(http.HandlerFunc(s.deps.Users.Delete))).Methods("DELETE")
	if s.deps.Audit != nil {
		admin.Handle("/audit", topScope(http.HandlerFunc(s.deps.Audit.List))).Methods("GET")
	}
}

// Handler returns the server's root handler, wrapped in tracing when
// enabled.
func (s *Server) Handler() http.Handler {
	if s.deps.TracingEnabled {
		return otelhttp.NewHandler(s.router, "beacon")
	}
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
