package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/controllers"
)

// RegisterAuthRoutes sets up the public authentication routes
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController) {
	auth := e.Group("/api/auth")

	auth.POST("/register", authController.Register)
	auth.POST("/login", authController.Login)
	auth.POST("/mobile-login", authController.MobileLogin)
}
