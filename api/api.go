// Package api exposes the REST surface of the training bank: auth and
// session handling, accounts and transfers, the admin console, and the
// level-gated vulnerability demos.
package api

import (
	"context"
	"database/sql"
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/demo"
	"github.com/jmcleod/glassbank/security"
)

// Storage bundles the persistence surfaces the API needs. The sqlite
// store satisfies all of them.
type Storage interface {
	bank.UserStore
	bank.AccountStore
	bank.TransactionStore
	security.SettingStore
}

// API holds the dependencies needed by the REST handlers.
type API struct {
	store    Storage
	sessions security.Store
	auth     *security.Authenticator
	csrf     *security.CSRFManager
	limiter  *security.RateLimiter
	levels   *security.LevelStore
	bank     *bank.Service
	demos    *demo.Registry
	audit    *auditLogger
	printer  *message.Printer

	idleTimeout  time.Duration
	defaultLevel security.Level
	loginMax     int
	loginWindow  time.Duration
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithIdleTimeout overrides how long a login may sit idle.
func WithIdleTimeout(d time.Duration) Option {
	return func(a *API) {
		a.idleTimeout = d
	}
}

// WithRateLimiting toggles the login rate limiter.
func WithRateLimiting(enabled bool) Option {
	return func(a *API) {
		a.limiter = security.NewRateLimiter(enabled)
	}
}

// WithLoginLimit overrides the login attempt budget per window.
func WithLoginLimit(max int, window time.Duration) Option {
	return func(a *API) {
		a.loginMax = max
		a.loginWindow = window
	}
}

// WithDefaultLevel sets the level unknown vulnerabilities resolve to.
func WithDefaultLevel(level security.Level) Option {
	return func(a *API) {
		a.defaultLevel = level
	}
}

// New creates a new API instance. db is the raw handle backing store;
// the SQL injection demo queries it directly.
func New(store Storage, db *sql.DB, sessions security.Store, opts ...Option) *API {
	a := &API{
		store:        store,
		sessions:     sessions,
		csrf:         security.NewCSRFManager(security.DefaultCSRFTokenBytes, security.DefaultCSRFTokenTTL),
		limiter:      security.NewRateLimiter(true),
		bank:         bank.NewService(store, store, store),
		printer:      message.NewPrinter(language.AmericanEnglish),
		idleTimeout:  security.DefaultIdleTimeout,
		defaultLevel: security.LevelImpossible,
		loginMax:     defaultLoginMax,
		loginWindow:  defaultLoginWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.auth = security.NewAuthenticator(store, a.idleTimeout)
	a.demos = demo.NewRegistry(
		demo.NewSQLInjection(db),
		demo.NewXSS(),
		demo.NewCSRF(store, a.principalFromRequest, a.verifyCSRFFromRequest),
	)
	a.levels = security.NewLevelStore(store, a.demos.IDs(), a.defaultLevel)
	return a
}

// Levels exposes the level store so the setup command can seed it.
func (a *API) Levels() *security.LevelStore { return a.levels }

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.SessionMiddleware)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/register", a.Register)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/logout", a.Logout)
	r.With(a.RequireAuth).Get("/auth/me", a.Me)
	r.With(a.RequireAuth).Get("/auth/csrf", a.CSRFToken)
	r.Get("/flash", a.Flash)

	r.Route("/accounts", func(r chi.Router) {
		r.Use(a.RequireAuth)
		r.Get("/", a.ListAccounts)
		r.Get("/{accountID}", a.GetAccount)
		r.Get("/{accountID}/transactions", a.ListTransactions)
		r.Group(func(r chi.Router) {
			r.Use(a.RequireCSRF)
			r.Post("/{accountID}/deposit", a.Deposit)
			r.Post("/{accountID}/withdraw", a.Withdraw)
			r.Post("/{accountID}/transfer", a.Transfer)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.RequireAdmin)
		r.Get("/dashboard", a.Dashboard)
		r.Get("/users", a.ListUsers)
		r.Get("/transactions", a.ListAllTransactions)
		r.Get("/settings", a.GetSettings)
		r.Group(func(r chi.Router) {
			r.Use(a.RequireCSRF)
			r.Put("/users/{userID}/status", a.UpdateUserStatus)
			r.Put("/users/{userID}/role", a.UpdateUserRole)
			r.Delete("/users/{userID}", a.DeleteUser)
			r.Put("/settings/{vulnerabilityID}", a.UpdateSetting)
			r.Post("/settings/reset", a.ResetSettings)
		})
	})

	// The demos carry their own request checks; the level decides which
	// variant answers, so no blanket CSRF gate here.
	r.Route("/demos", func(r chi.Router) {
		r.Use(a.RequireAuth)
		r.Get("/", a.ListDemos)
		r.HandleFunc("/{vulnerabilityID}", a.RunDemo)
	})

	return r
}

// principalFromRequest resolves the logged-in principal for handlers and
// demos that take it as a callback.
func (a *API) principalFromRequest(r *http.Request) (security.Principal, bool) {
	sid, ok := sessionIDFromContext(r.Context())
	if !ok {
		return security.Principal{}, false
	}
	return a.auth.Principal(a.sessions, sid)
}

// verifyCSRFFromRequest checks the request's token against the session.
func (a *API) verifyCSRFFromRequest(r *http.Request) bool {
	sid, ok := sessionIDFromContext(r.Context())
	if !ok {
		return false
	}
	return a.csrf.Verify(a.sessions, sid, csrfTokenFromRequest(r))
}

func sessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok && sid != ""
}
