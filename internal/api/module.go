package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/config"
	"github.com/abdoElHodaky/dlob-go/internal/streaming"
)

// Module provides the read-only HTTP API for fx: the Handler, and the
// registration of its routes on the gin.Engine supplied elsewhere in the
// graph, wired to the shared DLOB, oracle cache, and ingester.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(router *gin.Engine, h *Handler, streamHandler *streaming.Handler, cfg *config.Config, logger *zap.Logger) {
		RegisterRoutes(router, h, streamHandler, cfg.API.RateLimitPerMin, logger)
	}),
)
