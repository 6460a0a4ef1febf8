package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
)

// RegisterAdminRoutes sets up the back-office routes, all admin-only
func RegisterAdminRoutes(e *echo.Echo, adminController *controllers.AdminController) {
	r := e.Group("/api/admin")
	r.Use(middleware.JWTMiddleware(), middleware.RequireRole("admin"))

	r.GET("/stats", adminController.Stats)
	r.GET("/users", adminController.Users)
	r.PUT("/users/status", adminController.SetUserStatus)
	r.GET("/agencies", adminController.Agencies)
	r.GET("/payouts", adminController.Payouts)
	r.POST("/payouts/decide", adminController.DecidePayout)
	r.GET("/help-requests", adminController.HelpRequests)
}
