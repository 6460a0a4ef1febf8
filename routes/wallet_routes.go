package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
)

// RegisterWalletRoutes sets up the protected coin ledger routes
func RegisterWalletRoutes(e *echo.Echo, walletController *controllers.WalletController) {
	r := e.Group("/api/wallet")
	r.Use(middleware.JWTMiddleware())

	r.GET("/balance", walletController.GetBalance)
	r.POST("/transfer", walletController.Transfer)
	r.GET("/history", walletController.GetHistory)
}
