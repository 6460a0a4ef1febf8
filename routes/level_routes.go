package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
)

// RegisterLevelRoutes sets up the wealth/charm ladder routes
func RegisterLevelRoutes(e *echo.Echo, levelController *controllers.LevelController) {
	r := e.Group("/api/levels")
	r.Use(middleware.JWTMiddleware())

	r.GET("/:kind", levelController.Levels)
	r.GET("/progress/:userId", levelController.Progress)
}
