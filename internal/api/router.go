package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/taxdesk/filing-client/docs"
	"github.com/taxdesk/filing-client/internal/api/handler"
	"github.com/taxdesk/filing-client/internal/api/middleware"
	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/core/validation"
)

// Route prefixes of the development backend.
const (
	APIPrefix      = "/api"
	IdentityPrefix = "/identity/v1"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Filing    ports.FilingService
	Identity  ports.IdentityService
	JWTSecret string
	UploadDir string
	// Pingers are checked by the readiness endpoint, keyed by dependency name.
	Pingers map[string]ports.Pinger
	// Metrics receives the HTTP metrics and backs /metrics. Nil selects the
	// default Prometheus registry.
	Metrics *prometheus.Registry
	Logger  zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if d.Metrics != nil {
		registerer, gatherer = d.Metrics, d.Metrics
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "taxdesk",
		Subsystem:  "http",
		Registerer: registerer,
	}))

	// --- Dependencies ---
	userHandler := handler.NewUserHandler(d.Identity)
	requestHandler := handler.NewRequestHandler(d.Filing, d.UploadDir)
	adminHandler := handler.NewAdminHandler(d.Filing)
	identityHandler := handler.NewIdentityHandler(d.Identity)
	authMiddleware := middleware.Auth(d.JWTSecret)

	// --- Ops (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Pingers)

	e.GET("/health", healthHandler.Liveness)            // liveness: is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness: are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Identity emulator ---
	idp := e.Group(IdentityPrefix)
	idp.POST("/accounts/sign-in", identityHandler.SignIn)
	idp.POST("/accounts/sign-in-idp", identityHandler.SignInIdp)
	idp.POST("/accounts/password-reset", identityHandler.PasswordReset)
	idp.POST("/accounts/sign-in-methods", identityHandler.SignInMethods)
	idp.POST("/accounts/sign-out", identityHandler.SignOut)
	idp.POST("/token", identityHandler.Token)

	// --- REST API ---
	api := e.Group(APIPrefix)
	api.GET("/health", healthHandler.Liveness)
	api.POST("/users/register", userHandler.Register)

	authed := api.Group("", authMiddleware)
	authed.POST("/users/login", userHandler.Login)
	authed.GET("/users/:uid", userHandler.Get)
	authed.POST("/requests", requestHandler.Create)
	authed.GET("/requests/user/:uid", requestHandler.ListForUser)
	authed.GET("/requests/:id", requestHandler.Get)

	admin := api.Group("/admin", authMiddleware, middleware.RBAC(domain.RoleAdmin))
	admin.GET("/requests", adminHandler.List)
	admin.PUT("/requests/:id/status", adminHandler.UpdateStatus)
	admin.POST("/requests/:id/notes", adminHandler.AddNote)
	admin.DELETE("/requests/:id", adminHandler.Delete)
	admin.GET("/statistics", adminHandler.Statistics)
	admin.GET("/verify", adminHandler.Verify)

	return e
}

// requestLogger logs one structured line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
