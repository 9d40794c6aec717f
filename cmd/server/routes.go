package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bridge-settle.backend/internal/interfaces/http/handlers"
	"bridge-settle.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	adminHandler   *handlers.AdminHandler
	authMiddleware gin.HandlerFunc
}

// registerRoutes wires the engine's entire HTTP surface: an
// unauthenticated liveness probe plus an admin-only operator surface
// over the settlement pipeline. There is no public API -- the
// settlement loop itself runs unattended via the background jobs in
// cmd/server/main.go.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", d.adminHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin")
	admin.Use(d.authMiddleware, middleware.RequireAdmin())
	{
		admin.GET("/bridge-transactions", d.adminHandler.ListBridgeTransactionsByStatus)
		admin.GET("/bridge-transactions/:id", d.adminHandler.GetBridgeTransaction)
		admin.POST("/sweep/source", d.adminHandler.TriggerSourceSweep)
		admin.POST("/sweep/dest", d.adminHandler.TriggerDestSweep)
	}
}
