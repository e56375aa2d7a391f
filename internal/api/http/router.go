package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/dispatch-service/internal/api/http/handlers"
	"github.com/fieldops/dispatch-service/internal/auth"
	"github.com/fieldops/dispatch-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminHandler
	Hazards        *handlers.HazardsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	authenticated := cfg.AuthMiddleware.Handle

	users := api.Group("/users")
	users.Post("/newUser", cfg.Users.NewUser)
	users.Post("/checkUser", cfg.Users.CheckUser)
	users.Post("/reset", cfg.Users.Reset)
	users.Post("/raiseTicket", authenticated, auth.RequireRole(domain.RoleUser), cfg.Users.RaiseTicket)
	users.Get("/profile", authenticated, auth.RequireRole(), cfg.Users.Profile)
	users.Patch("/profile", authenticated, auth.RequireRole(domain.RoleUser, domain.RoleEngineer), cfg.Users.UpdateProfile)

	tasks := api.Group("/tasks", authenticated)
	readers := auth.RequireRole(domain.RoleUser, domain.RoleEngineer)
	tasks.Get("/", readers, cfg.Tickets.ListTickets)
	tasks.Get("/status/:status", readers, cfg.Tickets.ListByStatus)
	tasks.Get("/priority/:priority", readers, cfg.Tickets.ListByPriority)
	tasks.Get("/:ticketId", auth.RequireRole(), cfg.Tickets.GetTicket)
	tasks.Patch("/:ticketId/status", auth.RequireRole(domain.RoleEngineer, domain.RoleAdmin), cfg.Tickets.UpdateStatus)
	tasks.Patch("/:ticketId/accept", auth.RequireRole(domain.RoleEngineer), cfg.Tickets.Accept)
	tasks.Patch("/:ticketId/reject", auth.RequireRole(domain.RoleEngineer), cfg.Tickets.Reject)

	admin := api.Group("/admin", authenticated, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/tasks", cfg.Admin.ListTickets)
	admin.Get("/tasks/:ticketId/history", cfg.Admin.TicketHistory)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/status/:status", cfg.Admin.TicketsByStatus)
	admin.Get("/priority/:level", cfg.Admin.TicketsByPriority)
	admin.Get("/engineers", cfg.Admin.ListEngineers)
	admin.Get("/engineers/availability/:day", cfg.Admin.EngineersByAvailability)
	admin.Get("/engineers/eligible/:ticketId/:day", cfg.Admin.EligibleEngineers)
	admin.Get("/engineers/:email", cfg.Admin.GetEngineer)
	admin.Get("/approval/engineers", cfg.Admin.PendingEngineers)
	admin.Patch("/reassign/:ticketId/:engineerEmail", cfg.Admin.Reassign)
	admin.Patch("/approve-engineer/:email", cfg.Admin.ApproveEngineer)

	hazards := api.Group("/hazards", authenticated)
	adminOnly := auth.RequireRole(domain.RoleAdmin)
	hazards.Get("/", auth.RequireRole(), cfg.Hazards.List)
	hazards.Get("/:id", auth.RequireRole(), cfg.Hazards.Get)
	hazards.Post("/", adminOnly, cfg.Hazards.Create)
	hazards.Patch("/:id", adminOnly, cfg.Hazards.Update)
	hazards.Delete("/:id", adminOnly, cfg.Hazards.Delete)

	notifications := api.Group("/notifications", authenticated)
	notifications.Post("/", adminOnly, cfg.Notifications.Create)
	notifications.Post("/send", adminOnly, cfg.Notifications.Send)
	notifications.Get("/:email", auth.RequireRole(), cfg.Notifications.ListByEmail)
	notifications.Patch("/:id/read", auth.RequireRole(), cfg.Notifications.MarkRead)
	notifications.Delete("/:id", auth.RequireRole(), cfg.Notifications.Dismiss)
}
