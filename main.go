package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/controllers"
	"github.com/jakejheack/pony/middleware"
	"github.com/jakejheack/pony/repositories"
	"github.com/jakejheack/pony/routes"
	"github.com/jakejheack/pony/services"
	"github.com/jakejheack/pony/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis (optional, display caching only)
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	appConfig := config.LoadApp()

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		AllowedDomains: []string{"*"},
		AllowInlineJS:  false,
	}))

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Pony Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	userRepo := repositories.NewUserRepository(client)
	ledgerRepo := repositories.NewLedgerRepository(client, appConfig)
	agencyRepo := repositories.NewAgencyRepository(client)

	// Initialize services
	ledgerService := services.NewLedgerService(ledgerRepo, appConfig)
	agencyService := services.NewAgencyService(agencyRepo, ledgerRepo, appConfig)
	mailer := services.NewMailer()

	// Initialize controllers
	authController := controllers.NewAuthController(client)
	walletController := controllers.NewWalletController(ledgerService, redisClient, wsHub)
	agencyController := controllers.NewAgencyController(client, agencyService, mailer, wsHub)
	hostController := controllers.NewHostController(client, agencyService)
	bdController := controllers.NewBDController(client)
	levelController := controllers.NewLevelController(client, redisClient)
	adminController := controllers.NewAdminController(client, agencyService, mailer, wsHub)
	userController := controllers.NewUserController(client, userRepo)
	helpController := controllers.NewHelpController(client)

	// Register routes
	routes.RegisterAuthRoutes(e, authController)
	routes.RegisterWalletRoutes(e, walletController)
	routes.RegisterAgencyRoutes(e, agencyController)
	routes.RegisterHostRoutes(e, hostController)
	routes.RegisterBDRoutes(e, bdController)
	routes.RegisterLevelRoutes(e, levelController)
	routes.RegisterAdminRoutes(e, adminController)
	routes.RegisterUserRoutes(e, userController, helpController, wsHub)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
