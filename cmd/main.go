package main

import (
	"fmt"
	"os"
	"time"

	"github.com/strataworks/chainrisk-backend/internal/cache"
	"github.com/strataworks/chainrisk-backend/internal/db"
	"github.com/strataworks/chainrisk-backend/internal/graph"
	"github.com/strataworks/chainrisk-backend/internal/handlers"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/middleware"
	"github.com/strataworks/chainrisk-backend/internal/repos"
	"github.com/strataworks/chainrisk-backend/internal/server"
	"github.com/strataworks/chainrisk-backend/internal/services"
	"github.com/strataworks/chainrisk-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres (or local sqlite fallback)
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	companyRepo := repos.NewCompanyRepo(thePG, log)
	relationRepo := repos.NewCompanyRelationRepo(thePG, log)
	simRepo := repos.NewRiskSimulationRepo(thePG, log)
	scoreRepo := repos.NewTimestepScoreRepo(thePG, log)

	// Run cache: redis when REDIS_ADDR is set, in-memory otherwise
	runTTL := time.Duration(utils.GetEnvAsInt("RUN_CACHE_TTL_SECONDS", 600, log)) * time.Second
	sweepInterval := time.Duration(utils.GetEnvAsInt("RUN_CACHE_SWEEP_SECONDS", 600, log)) * time.Second
	runCache, err := cache.NewRedisCacheFromEnv(log, runTTL)
	if err != nil {
		log.Error("Redis run cache init failed", "error", err)
		os.Exit(1)
	}
	if runCache == nil {
		runCache = cache.NewMemoryCache(log, runTTL, sweepInterval)
	}
	defer runCache.Close()

	// Graph source: neo4j when NEO4J_URI is set, relational rows otherwise
	graphSource, err := graph.NewNeo4jSourceFromEnv(log)
	if err != nil {
		log.Error("Neo4j graph source init failed", "error", err)
		os.Exit(1)
	}
	if graphSource == nil {
		graphSource = graph.NewRelationalSource(relationRepo)
	}

	// Services
	log.Info("Setting up services from main...")
	propagationService := services.NewPropagationService(thePG, log, companyRepo, graphSource, runCache)
	simulationService := services.NewSimulationService(thePG, log, runCache, simRepo)
	timeseriesService := services.NewTimeseriesService(thePG, log, scoreRepo)
	datasetService := services.NewDatasetService(thePG, log, scoreRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	propagationHandler := handlers.NewPropagationHandler(log, propagationService)
	simulationHandler := handlers.NewSimulationHandler(log, simulationService)
	timeseriesHandler := handlers.NewTimeseriesHandler(log, timeseriesService, datasetService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		RequestLogMiddleware: middleware.NewRequestLogMiddleware(log),
		PropagationHandler:   propagationHandler,
		SimulationHandler:    simulationHandler,
		TimeseriesHandler:    timeseriesHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server stopped", "error", err)
	}
}
