// Package gateway owns the DLOB read API's HTTP server lifecycle: a
// single gin.Engine bound to cfg.API.BindAddress, started and stopped by
// fx. There is no service mesh or reverse proxy here — the DLOB is a
// single binary, so the routing and rate-limiting this engine carries
// are registered directly by internal/api, not forwarded to other
// processes.
package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/config"
)

// ServerParams is the fx.In bundle NewServer needs.
type ServerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Config    *config.Config
	Engine    *gin.Engine
}

// Server wraps an http.Server bound to the configured gin.Engine, started
// and stopped as part of the fx app's lifecycle.
type Server struct {
	logger *zap.Logger
	server *http.Server
}

// NewServer builds a Server; it does not listen until fx starts the app.
func NewServer(p ServerParams) *Server {
	srv := &Server{
		logger: p.Logger,
		server: &http.Server{
			Addr:    p.Config.API.BindAddress,
			Handler: p.Engine,
		},
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				p.Logger.Info("starting read API server", zap.String("address", p.Config.API.BindAddress))
				if err := srv.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					p.Logger.Error("read API server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping read API server")
			return srv.server.Shutdown(ctx)
		},
	})

	return srv
}
