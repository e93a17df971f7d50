package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/pod-console/internal/api/http/handlers"
	"github.com/spec-kit/pod-console/internal/auth"
)

// StandardScreens sit behind the standard guard (Admin, Manager).
var StandardScreens = []string{"bookings", "payments", "pods"}

// ElevatedScreens sit behind the elevated guard (Admin only).
var ElevatedScreens = []string{"revenue", "users", "settings"}

// Visitor records locations the user reached.
type Visitor interface {
	Visit(path string)
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Session        *handlers.SessionHandler
	Screens        *handlers.ScreensHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         auth.Policy
	Visitor        Visitor
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	visit := trackLocation(cfg.Visitor)

	app.Get(cfg.Policy.LoginPath, visit, cfg.Session.LoginPage)
	app.Post(cfg.Policy.LoginPath, cfg.Session.Login)
	app.Post("/logout", cfg.Session.Logout)
	app.Get(cfg.Policy.UnauthorizedPath, visit, cfg.Session.Unauthorized)
	app.Get("/session", cfg.Session.Session)
	app.Get("/notifications", cfg.Session.Notifications)

	guarded := app.Group("", cfg.AuthMiddleware.Handle)
	guarded.Get("/dashboard", auth.Require(cfg.Policy.AnyRole()), visit, cfg.Screens.Show("dashboard"))
	for _, screen := range StandardScreens {
		guarded.Get("/"+screen, auth.Require(cfg.Policy.Standard()), visit, cfg.Screens.Show(screen))
	}
	for _, screen := range ElevatedScreens {
		guarded.Get("/"+screen, auth.Require(cfg.Policy.Elevated()), visit, cfg.Screens.Show(screen))
	}
}

// trackLocation records the path once the guards have let the request through.
func trackLocation(v Visitor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v != nil {
			v.Visit(c.Path())
		}
		return c.Next()
	}
}
