package router

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"maskan/internal/auth"
	"maskan/internal/config"
	"maskan/internal/errors"
	"maskan/internal/handler"
	"maskan/internal/middleware"
	"maskan/internal/validate"
)

// Handlers groups the HTTP handlers served under /api.
type Handlers struct {
	Auth         *handler.AuthHandler
	Account      *handler.AccountHandler
	Listing      *handler.ListingHandler
	Profile      *handler.ProfileHandler
	Notification *handler.NotificationHandler
}

// Dependencies are the shared components the routes need besides handlers.
type Dependencies struct {
	Logger  *zap.Logger
	Tokens  auth.TokenService
	Users   middleware.Authenticator
	Metrics *middleware.HTTPMetrics
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, deps Dependencies, h Handlers) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e.HTTPErrorHandler = errors.HTTPErrorHandler(log)
	e.Validator = validate.New()

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	if cfg.RequestTimeout > 0 {
		e.Use(echomw.ContextTimeout(cfg.RequestTimeout))
	}
	e.Use(deps.Metrics.Handler())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	limited := rateLimiter(cfg.AuthRateLimit)
	identity := middleware.Identity(deps.Tokens, deps.Users)

	api := e.Group("/api")

	// Public routes
	api.POST("/signup", h.Auth.Signup, limited)
	api.POST("/login", h.Auth.Login, limited)
	api.POST("/password-reset-request", h.Account.RequestPasswordReset, limited)
	api.POST("/reset-password", h.Account.ResetPassword, limited)
	api.POST("/verify", h.Account.Verify, limited)
	api.GET("/verify/:token", h.Account.VerifyLink, limited)

	api.GET("/listings", h.Listing.List)
	api.GET("/listings/:id", h.Listing.Get)

	api.POST("/agent-profile", h.Profile.CreateAgent)
	api.GET("/agents/:email", h.Profile.GetAgent)
	api.POST("/broker-profile", h.Profile.CreateBroker)

	api.POST("/whatsapp", h.Notification.ShareWhatsApp, limited)

	// Secured routes (require a bearer token)
	secured := api.Group("", identity)

	secured.POST("/refresh-token", h.Auth.Refresh)
	secured.POST("/logout", h.Auth.Logout)

	secured.PUT("/profile", h.Account.UpdateProfile)
	secured.GET("/verify/status", h.Account.VerificationStatus)
	secured.POST("/verify/request", h.Account.RequestVerification)

	secured.POST("/listings", h.Listing.Create)
	secured.PUT("/listings/:id", h.Listing.Update)
	secured.DELETE("/listings/:id", h.Listing.Delete)
	secured.GET("/user-listings", h.Listing.UserListings)

	secured.GET("/notifications", h.Notification.History)
}

// rateLimiter limits each client IP to perSecond requests with a matching
// burst. A non-positive rate disables limiting.
func rateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		ErrorHandler: func(c echo.Context, err error) error {
			return errors.NewHTTPError(http.StatusForbidden, "unable to identify client", "FORBIDDEN")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return errors.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later", "RATE_LIMITED")
		},
	})
}
