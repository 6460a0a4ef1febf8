package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
)

// RegisterHostRoutes sets up the host-side membership routes
func RegisterHostRoutes(e *echo.Echo, hostController *controllers.HostController) {
	r := e.Group("/api/host")
	r.Use(middleware.JWTMiddleware())

	r.GET("/dashboard/:userId", hostController.Dashboard)
	r.GET("/invitations/:userId", hostController.Invitations)
	r.POST("/invitations/respond", hostController.RespondToInvitation)
	r.GET("/payouts/:userId", hostController.Payouts)
}
