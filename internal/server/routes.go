// Package server configures the HTTP server and routes.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/pokemmo-companion/internal/config"
	"github.com/fleveque/pokemmo-companion/internal/flow"
	"github.com/fleveque/pokemmo-companion/internal/handler"
	"github.com/fleveque/pokemmo-companion/internal/middleware"
	"github.com/fleveque/pokemmo-companion/internal/service"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

// Deps holds everything the handlers need. cmd/server builds it once.
type Deps struct {
	States    *service.StateService
	Resources *service.ResourceService
	Sprites   *service.SpriteService
	Manager   *flow.Manager
	FetchLog  storage.FetchLogRepository
	Breaker   handler.BreakerReporter
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// In Go, we pass dependencies explicitly: no DI container, no magic.
// Each handler gets exactly the dependencies it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.Breaker)
	stateHandler := handler.NewStateHandler(deps.States, logger)
	resourceHandler := handler.NewResourceHandler(deps.Resources, logger)
	spriteHandler := handler.NewSpriteHandler(deps.Sprites, logger)
	containerHandler := handler.NewContainerHandler(deps.Manager, logger)
	adminHandler := handler.NewAdminHandler(deps.Resources, deps.Sprites, deps.FetchLog, deps.Breaker, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	// CORS middleware applies to the entire API group. Preflight requests
	// need a route to match before the middleware can answer them.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// The capture agent posts snapshots here.
	ingest := api.Group("")
	ingest.Use(middleware.IngestKeyAuth(cfg.Auth.IngestKeys))
	{
		ingest.POST("/ingest", stateHandler.Ingest)
	}

	// Proxy endpoints hit PokeAPI on a cache miss, so they are rate limited.
	proxy := api.Group("")
	proxy.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		proxy.GET("/species/:key", resourceHandler.Species)
		proxy.GET("/moves/:id", resourceHandler.Move)
		proxy.GET("/abilities/:id", resourceHandler.Ability)
		proxy.GET("/sprites/:key", spriteHandler.GetSprite)
	}

	api.GET("/state", stateHandler.State)

	containers := api.Group("/containers/:source")
	{
		containers.GET("", containerHandler.Snapshot)
		containers.GET("/events", containerHandler.Events)
		containers.POST("/refresh", containerHandler.Refresh)
		containers.PUT("/box", containerHandler.SelectBox)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/fetches", adminHandler.RecentFetches)
		admin.DELETE("/cache/:kind", adminHandler.ClearCache)
		admin.DELETE("/sprites/:key", adminHandler.ForgetSprite)
	}
}
