package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/streaming"
)

// RegisterRoutes wires the read-only DLOB HTTP surface onto router.
func RegisterRoutes(router *gin.Engine, h *Handler, streamHandler *streaming.Handler, rateLimitPerMin int, logger *zap.Logger) {
	router.Use(RequestID())
	router.Use(cors.Default())
	router.Use(NewRateLimiter(rateLimitPerMin, logger))

	router.GET("/healthz", h.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/l3", Gzip(), h.L3)
	router.GET("/orders/:orderID", h.GetOrder)
	router.GET("/ws/l3", streamHandler.ServeL3)
}
