package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/strataworks/chainrisk-backend/internal/handlers"
	"github.com/strataworks/chainrisk-backend/internal/middleware"
)

type RouterConfig struct {
	RequestLogMiddleware *middleware.RequestLogMiddleware
	PropagationHandler   *handlers.PropagationHandler
	SimulationHandler    *handlers.SimulationHandler
	TimeseriesHandler    *handlers.TimeseriesHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))
	if cfg.RequestLogMiddleware != nil {
		router.Use(cfg.RequestLogMiddleware.Handler())
	}

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Propagation runs
		api.POST("/simulation/run", cfg.PropagationHandler.Run)
		api.POST("/simulation/commit", cfg.SimulationHandler.Commit)

		// Committed simulations
		api.GET("/simulations", cfg.SimulationHandler.List)
		api.GET("/simulations/:id", cfg.SimulationHandler.Get)
		api.DELETE("/simulations/:id", cfg.SimulationHandler.Delete)

		// Time-series dataset
		api.GET("/timeseries/:simulationId/topology", cfg.TimeseriesHandler.GetTopology)
		api.GET("/timeseries/:simulationId/step", cfg.TimeseriesHandler.GetStep)
		api.GET("/timeseries/:simulationId/companies/:companyId", cfg.TimeseriesHandler.GetCompanyDetail)
		api.POST("/timeseries/import", cfg.TimeseriesHandler.Import)
	}

	return router
}
