package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/issue-tracker/internal/api/http/handlers"
	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Guard        *auth.Guard
	Tokens       *auth.TokenMiddleware
	Metrics      *observability.Metrics
	Health       *handlers.HealthHandler
	Session      *handlers.SessionHandler
	Issues       *handlers.IssuesHandler
	Customers    *handlers.CustomersHandler
	Catalog      *handlers.CatalogHandler
	Users        *handlers.UsersHandler
	Settings     *handlers.SettingsHandler
	Dashboard    *handlers.DashboardHandler
	Maintenance  *handlers.MaintenanceHandler
	Integrations *handlers.IntegrationsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/session", cfg.Session.Login)
	authGroup.Post("/logout", cfg.Session.Logout)

	api := app.Group("/api", cfg.Tokens.Handle, auth.RequireSession(cfg.Guard))
	api.Get("/session", cfg.Session.Current)

	issues := api.Group("/issues")
	issues.Get("/", cfg.Issues.ListIssues)
	issues.Post("/", cfg.Issues.CreateIssue)
	issues.Post("/bulk", cfg.Issues.BulkUpdate)
	issues.Get("/:id", cfg.Issues.GetIssue)
	issues.Patch("/:id", cfg.Issues.UpdateIssue)
	issues.Delete("/:id", cfg.Issues.DeleteIssue)
	issues.Post("/:id/status", cfg.Issues.ChangeStatus)
	issues.Post("/:id/assign", cfg.Issues.AssignIssue)
	issues.Post("/:id/escalate", cfg.Issues.Escalate)
	issues.Post("/:id/bug-report", cfg.Issues.GenerateBugReport)
	issues.Get("/:id/comments", cfg.Issues.ListComments)
	issues.Post("/:id/comments", cfg.Issues.AddComment)
	api.Delete("/comments/:id", cfg.Issues.DeleteComment)

	customers := api.Group("/customers")
	customers.Get("/", cfg.Customers.List)
	customers.Post("/", cfg.Customers.Create)
	customers.Get("/:id", cfg.Customers.Get)
	customers.Put("/:id", cfg.Customers.Update)
	customers.Delete("/:id", cfg.Customers.Delete)

	api.Get("/applications", cfg.Catalog.ListApplications)
	api.Post("/applications", cfg.Catalog.CreateApplication)
	api.Put("/applications/:id", cfg.Catalog.UpdateApplication)
	api.Delete("/applications/:id", cfg.Catalog.DeleteApplication)
	api.Get("/categories", cfg.Catalog.ListCategories)
	api.Post("/categories", cfg.Catalog.CreateCategory)
	api.Put("/categories/:id", cfg.Catalog.UpdateCategory)
	api.Delete("/categories/:id", cfg.Catalog.DeleteCategory)

	users := api.Group("/users")
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Add)
	users.Get("/assignable", cfg.Users.Assignable)
	users.Put("/:id/role", cfg.Users.UpdateRole)
	users.Post("/:id/permissions/reset", cfg.Users.ResetPermissions)
	users.Post("/:id/toggle-active", cfg.Users.ToggleActive)
	users.Delete("/:id", cfg.Users.Remove)
	api.Get("/members/search", cfg.Users.SearchMembers)

	api.Get("/settings", cfg.Settings.Get)
	api.Put("/settings", cfg.Settings.Update)

	api.Get("/dashboard/stats", cfg.Dashboard.Stats)
	api.Get("/dashboard/activity", cfg.Dashboard.Activity)
	api.Get("/reports/customers", cfg.Dashboard.CustomerReport)
	api.Get("/reports/applications", cfg.Dashboard.ApplicationReport)

	api.Post("/maintenance/reconcile", auth.RequirePermission(cfg.Guard, domain.PermSettingsWrite), cfg.Maintenance.Reconcile)

	jira := api.Group("/integrations/jira")
	jira.Get("/projects", cfg.Integrations.Projects)
	jira.Get("/projects/:key/issue-types", cfg.Integrations.IssueTypes)
	jira.Get("/diagnostics", cfg.Integrations.Diagnostics)
}
