package routes

import (
	"io"
	"os"
	"strings"
	"time"

	"spamguard/server/internal/handlers"
	"spamguard/server/internal/logging"
	"spamguard/server/internal/metrics"
	"spamguard/server/internal/middleware"
	"spamguard/server/internal/services"
	"spamguard/server/internal/utils"
	ws "spamguard/server/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Dependencies are the components the routes are wired to.
type Dependencies struct {
	Tokens    *utils.TokenService
	Users     middleware.UserFinder
	Sessions  *services.SessionService
	Directory *services.DirectoryService
	Hub       *ws.Hub
	Metrics   *metrics.Metrics
	Logger    logging.Logger

	CookieSecure bool
	CORSOrigins  []string
	// AccessLog receives Fiber's access log; nil means stdout.
	AccessLog io.Writer
}

// NewApp builds the Fiber app with the global middleware stack and all routes.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "SpamGuard API v1.0",
		ErrorHandler: handlers.ErrorHandler(deps.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	accessLog := deps.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		Output: accessLog,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(deps.CORSOrigins, ","),
		AllowCredentials: true,
	}))

	SetupRoutes(app, deps)
	return app
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	auth := handlers.NewAuthHandler(deps.Sessions, deps.CookieSecure, deps.Tokens.AccessTTL(), deps.Tokens.RefreshTTL())
	directory := handlers.NewDirectoryHandler(deps.Directory)
	realtime := handlers.NewRealtimeHandler(deps.Hub)
	requireAuth := middleware.AuthMiddleware(deps.Tokens, deps.Users)

	app.Get("/metrics", deps.Metrics.Handler())

	// API v1 group
	api := app.Group("/api/v1")

	// Health check (public)
	api.Get("/health", handlers.Health(deps.Hub))

	users := api.Group("/users")

	// Session routes (public)
	users.Post("/register", middleware.StrictRateLimiter(), auth.Register)
	users.Post("/login", middleware.StrictRateLimiter(), auth.Login)
	users.Post("/refresh-token", middleware.StrictRateLimiter(), auth.RefreshToken)

	// Secure routes
	users.Post("/logout", requireAuth, auth.Logout)
	users.Post("/mark-spam", requireAuth, middleware.ModerateRateLimiter(), directory.MarkSpam)
	users.Get("/search", requireAuth, middleware.RelaxedRateLimiter(), directory.Search)
	users.Get("/contact/:id", requireAuth, middleware.RelaxedRateLimiter(), directory.GetContact)

	// Spam alert feed (protected)
	api.Get("/ws", requireAuth, realtime.Upgrade, realtime.Connect())
}
