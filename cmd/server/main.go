package main

import (
	"log"
	"os"

	"pollhub/internal/api"
	"pollhub/internal/middleware"
	"pollhub/internal/router"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions. The cookie session is the durable client-side storage
	// holding the token and user record across restarts.
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("pollhub_session", store))

	// Load Templates
	r.HTMLRender = router.LoadTemplates("./web/templates")

	// Static Assets
	r.Static("/static", "./web/static")

	// Middleware
	r.Use(middleware.LoadIdentity())

	// One pre-configured API client shared by every view.
	client := api.New(os.Getenv("POLLHUB_API_URL"))
	router.RegisterRoutes(r, client)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("PollHub web client starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
