package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
)

// RegisterBDRoutes sets up the business-development portfolio routes
func RegisterBDRoutes(e *echo.Echo, bdController *controllers.BDController) {
	r := e.Group("/api/bd")
	r.Use(middleware.JWTMiddleware(), middleware.RequireRole("bd"))

	r.GET("/dashboard/:bdId", bdController.Dashboard)
	r.GET("/:bdId/agencies", bdController.Agencies)
	r.GET("/:bdId/hosts", bdController.Hosts)
	r.POST("/link-agency", bdController.LinkAgency)
}
