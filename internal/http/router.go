package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"go.ngs.io/pgw4era/internal/usecase"
)

// SetupRouter creates and configures the Gin router. inspector may be nil,
// in which case /v1/anomaly answers 503.
func SetupRouter(inspector *usecase.Inspector) *gin.Engine {

	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable.
	// Default to allow all origins if not specified.
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}

	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(inspector)

	// API v1 routes.
	v1 := router.Group("/v1")
	// Calendar.
	v1.GET("/midpoints", handler.GetMidpoints)
	v1.GET("/bracket", handler.GetBracket)

	// Signals.
	v1.GET("/variables", handler.GetVariables)
	v1.GET("/anomaly", handler.GetAnomaly)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}
