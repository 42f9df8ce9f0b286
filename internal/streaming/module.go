package streaming

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/ingest"
	"github.com/abdoElHodaky/dlob-go/internal/oracle"
)

// Module provides the websocket l3 streaming surface for fx: a
// Broadcaster, its gin handler, and the periodic publisher that keeps
// connected subscribers fed.
var Module = fx.Options(
	fx.Provide(func(logger *zap.Logger) *Broadcaster {
		return New(DefaultConfig(), logger)
	}),
	fx.Provide(NewHandler),
	fx.Invoke(registerPublisher),
)

// publishInterval is how often connected subscribers get a fresh l3
// snapshot pushed to them.
const publishInterval = time.Second

func registerPublisher(lc fx.Lifecycle, book *dlob.DLOB, broadcaster *Broadcaster, oracleCache *oracle.Cache, ing *ingest.Ingester, logger *zap.Logger) {
	publisher := NewPublisher(book, broadcaster, oracleCache, ing.Slot, publishInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go publisher.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
