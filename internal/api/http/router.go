package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Companies      *handlers.CompaniesHandler
	Attachments    *handlers.AttachmentsHandler
	Web            *handlers.WebHandler
	AuthMiddleware *auth.AuthMiddleware
	Authorizer     *auth.Authorizer
	// CSRF guards form posts on pages. Nil disables it.
	CSRF fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	registerAPI(app, cfg)
	if cfg.Web != nil {
		registerPages(app, cfg)
	}
}

func registerAPI(app *fiber.App, cfg RouteConfig) {
	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.AuthMiddleware.Optional, cfg.Auth.Logout)

	companies := api.Group("/companies", cfg.AuthMiddleware.Handle, cfg.Authorizer.RequireMethod(auth.ResourceCompanies))
	companies.Get("/", cfg.Companies.List)
	companies.Post("/", cfg.Companies.Create)
	companies.Get("/:id", cfg.Companies.Get)
	companies.Put("/:id", cfg.Companies.Replace)
	companies.Patch("/:id", cfg.Companies.Update)
	companies.Delete("/:id", cfg.Companies.Delete)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle, cfg.Authorizer.RequireMethod(auth.ResourceTickets))
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/add_comment", cfg.Tickets.AddComment)

	histories := api.Group("/ticket-histories", cfg.AuthMiddleware.Handle, cfg.Authorizer.Require(auth.ResourceHistories, auth.ActionRead))
	histories.Get("/", cfg.Tickets.ListHistories)
	histories.Get("/:id", cfg.Tickets.GetHistory)

	attachments := api.Group("/ticket-attachments", cfg.AuthMiddleware.Handle, cfg.Authorizer.RequireMethod(auth.ResourceAttachments))
	attachments.Get("/", cfg.Attachments.List)
	attachments.Post("/", cfg.Attachments.Create)
	attachments.Get("/:id", cfg.Attachments.Get)
	attachments.Put("/:id", cfg.Attachments.Update)
	attachments.Patch("/:id", cfg.Attachments.Update)
	attachments.Delete("/:id", cfg.Attachments.Delete)
}

func registerPages(app *fiber.App, cfg RouteConfig) {
	csrf := cfg.CSRF
	if csrf == nil {
		csrf = func(c *fiber.Ctx) error { return c.Next() }
	}
	web := cfg.Web
	signedIn := cfg.AuthMiddleware.HandleWeb
	optional := cfg.AuthMiddleware.Optional

	app.Get("/", csrf, signedIn, web.Index)
	app.Get("/ticket/novo/", csrf, signedIn, web.NewTicketForm)
	app.Post("/ticket/novo/", csrf, signedIn, web.CreateTicket)
	app.Get("/ticket/:id/", csrf, signedIn, web.TicketDetail)
	app.Get("/ticket/:id/editar/", csrf, signedIn, web.EditTicketForm)
	app.Post("/ticket/:id/editar/", csrf, signedIn, web.UpdateTicket)

	app.Get("/login/", csrf, optional, web.LoginForm)
	app.Post("/login/", csrf, web.Login)
	app.Get("/logout/", optional, web.Logout)
	app.Post("/logout/", csrf, optional, web.Logout)
	app.Get("/register/", csrf, optional, web.RegisterForm)
	app.Post("/register/", csrf, web.Register)
}
