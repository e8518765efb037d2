// Package main provides the pgw4era inspection HTTP server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.ngs.io/pgw4era/internal/adapter/store/anomaly"
	"go.ngs.io/pgw4era/internal/config"
	"go.ngs.io/pgw4era/internal/domain"
	httpHandler "go.ngs.io/pgw4era/internal/http"
	"go.ngs.io/pgw4era/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("pgw4era-server version %s\n", version)
		return
	}

	// Load configuration from environment.
	port := getEnv("PORT", "8080")
	configPath := getEnv("CONFIG", "")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	anomalyDir := getEnv("ANOMALY_DIR", cfg.Paths.AnomalyDir)

	log.Printf("Starting pgw4era inspection server...")
	log.Printf("Port: %s", port)
	if configPath != "" {
		log.Printf("Config: %s", configPath)
	}

	// Initialize the signal store (optional).
	var inspector *usecase.Inspector
	if _, err := os.Stat(anomalyDir); err == nil {
		log.Printf("Signal directory: %s", anomalyDir)
		signals := anomaly.NewStore(anomalyDir, cfg.AnomalyFiles(), domain.LevelsDescending)
		inspector = usecase.NewInspector(signals)
	} else {
		log.Printf("Signal directory %s not found, /v1/anomaly disabled", anomalyDir)
	}

	// Setup router.
	router := httpHandler.SetupRouter(inspector)

	// Start server.
	addr := fmt.Sprintf(":%s", port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Health check: http://localhost:%s/health", port)
	log.Printf("API endpoints:")
	log.Printf("  - GET /v1/midpoints")
	log.Printf("  - GET /v1/bracket")
	log.Printf("  - GET /v1/variables")
	if inspector != nil {
		log.Printf("  - GET /v1/anomaly")
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("pgw4era inspection server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  pgw4era-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  CONFIG                  TOML configuration file (default: built-in defaults)")
	fmt.Println("  ANOMALY_DIR             Signal directory (default: paths.anomaly_dir)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  pgw4era-server")
	fmt.Println()
	fmt.Println("  # Start server on custom port with a configuration file")
	fmt.Println("  PORT=3000 CONFIG=pgw4era.toml pgw4era-server")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                    Health check")
	fmt.Println("  GET /v1/midpoints?year=        Monthly midpoint calendar of a year")
	fmt.Println("  GET /v1/bracket?time=          Bracketing months and weight of a timestamp")
	fmt.Println("  GET /v1/variables              Variable table")
	fmt.Println("  GET /v1/anomaly?var=&lat=&lon=&time=[&level=]")
	fmt.Println("                                 Time-interpolated signal at a point")
	fmt.Println()
}
