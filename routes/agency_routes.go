package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
)

// RegisterAgencyRoutes sets up the agency management routes
func RegisterAgencyRoutes(e *echo.Echo, agencyController *controllers.AgencyController) {
	r := e.Group("/api/agency")
	r.Use(middleware.JWTMiddleware())

	r.POST("", agencyController.CreateAgency)
	r.GET("/dashboard/:userId", agencyController.Dashboard)
	r.GET("/:agencyId/commission-history", agencyController.CommissionHistory)
	r.GET("/:agencyId/hosts", agencyController.Hosts)
	r.GET("/:agencyId/applications", agencyController.Applications)
	r.GET("/:agencyId/invitations", agencyController.Invitations)
	r.GET("/:agencyId/payouts", agencyController.Payouts)
	r.GET("/:agencyId/code-qr", agencyController.CodeQR)

	r.POST("/join", agencyController.Join)
	r.POST("/applications/respond", agencyController.RespondToApplication)
	r.POST("/invite", agencyController.Invite)
	r.POST("/invitations/cancel", agencyController.CancelInvitation)
	r.POST("/payouts", agencyController.RequestPayout)
}
