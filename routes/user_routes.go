package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
	"github.com/jakejheack/pony/models"
	"github.com/jakejheack/pony/websocket"
)

// RegisterUserRoutes sets up profile, help and websocket routes
func RegisterUserRoutes(e *echo.Echo, userController *controllers.UserController, helpController *controllers.HelpController, hub *websocket.Hub) {
	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())

	r.GET("/users/:userId", userController.GetProfile)
	r.PUT("/users/:userId", userController.UpdateProfile)
	r.GET("/users/:userId/coin-history", userController.CoinHistory)

	r.POST("/help", helpController.Submit)

	r.GET("/ws", func(c echo.Context) error {
		userID, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid token",
			})
		}
		return websocket.HandleWebSocket(c, hub, userID)
	})
}
