// Command dlob runs the decentralized limit order book read service: it
// ingests account updates, maintains the in-memory order book, and
// serves l3 snapshots over HTTP and websocket.
package main

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/api"
	"github.com/abdoElHodaky/dlob-go/internal/builder"
	"github.com/abdoElHodaky/dlob-go/internal/config"
	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
	"github.com/abdoElHodaky/dlob-go/internal/gateway"
	"github.com/abdoElHodaky/dlob-go/internal/ingest"
	"github.com/abdoElHodaky/dlob-go/internal/metrics"
	"github.com/abdoElHodaky/dlob-go/internal/oracle"
	"github.com/abdoElHodaky/dlob-go/internal/snapshot"
	"github.com/abdoElHodaky/dlob-go/internal/streaming"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newGinEngine,
			newDLOB,
			newOracleCache,
			newMetricsCollectors,
			newProgramID,
			newSubscriber,
			newIngester,
			newSnapshotFetcher,
			newSnapshotClient,
			newBuilder,
		),

		api.Module,
		streaming.Module,
		gateway.Module,

		fx.Invoke(
			registerMetricsReporter,
			registerIngester,
			registerBuilder,
			func(*gateway.Server) {},
		),
	)

	app.Run()
}

func newConfig() (*config.Config, error) {
	return config.LoadConfig("")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return config.InitLogger(cfg)
}

func newGinEngine(cfg *config.Config) *gin.Engine {
	if cfg.Monitoring.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return gin.New()
}

func newDLOB(logger *zap.Logger, collectors *metrics.Collectors) *dlob.DLOB {
	return dlob.New(logger).WithMetrics(collectors)
}

func newOracleCache(logger *zap.Logger) *oracle.Cache {
	return oracle.New(5*time.Minute, 10*time.Minute, logger)
}

func newMetricsCollectors() *metrics.Collectors {
	return metrics.New(prometheus.DefaultRegisterer)
}

func newProgramID(cfg *config.Config) (dlobtypes.Pubkey, error) {
	return dlobtypes.PubkeyFromBase58(cfg.Solana.ProgramID)
}

// newSubscriber connects a NATS-backed watermill subscriber for the
// configured ingest subject.
func newSubscriber(cfg *config.Config) (message.Subscriber, error) {
	watermillLogger := watermill.NewStdLogger(false, false)

	subscriberConfig := nats.SubscriberConfig{
		URL:         cfg.Ingest.NATSURL,
		Unmarshaler: nats.GobMarshaler{},
		QueueGroup:  "dlob",
	}

	return nats.NewSubscriber(subscriberConfig, watermillLogger)
}

func newIngester(book *dlob.DLOB, subscriber message.Subscriber, cfg *config.Config, programID dlobtypes.Pubkey, collectors *metrics.Collectors, logger *zap.Logger) (*ingest.Ingester, error) {
	ing, err := ingest.New(book, subscriber, cfg.Ingest.Subject, ingest.Config{
		TargetProgram:  programID,
		WorkerPoolSize: cfg.Ingest.WorkerPoolSize,
	}, logger)
	if err != nil {
		return nil, err
	}
	return ing.WithMetrics(collectors), nil
}

func newSnapshotFetcher(cfg *config.Config) *snapshot.RPCFetcher {
	return snapshot.NewRPCFetcher(cfg.Solana.RPCEndpoint, cfg.Snapshot.Timeout)
}

func newSnapshotClient(fetcher *snapshot.RPCFetcher, programID dlobtypes.Pubkey, cfg *config.Config, collectors *metrics.Collectors, logger *zap.Logger) *snapshot.Client {
	return snapshot.New(fetcher, programID, cfg.Snapshot.Timeout, snapshot.Settings{
		MaxRequests: cfg.Snapshot.CircuitMaxRequests,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}, logger).WithMetrics(collectors)
}

func newBuilder(book *dlob.DLOB, client *snapshot.Client, cfg *config.Config, collectors *metrics.Collectors, logger *zap.Logger) *builder.Builder {
	return builder.New(book, client, cfg.Builder.RebuildInterval, logger).WithMetrics(collectors)
}

func registerMetricsReporter(lc fx.Lifecycle, collectors *metrics.Collectors, book *dlob.DLOB) {
	reporter := metrics.NewReporter(collectors, book, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go reporter.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func registerIngester(lc fx.Lifecycle, ing *ingest.Ingester, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := ing.Run(ctx); err != nil {
					logger.Error("ingest loop stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			ing.Close()
			return nil
		},
	})
}

func registerBuilder(lc fx.Lifecycle, b *builder.Builder) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.Start(ctx)
		},
		OnStop: func(context.Context) error {
			b.Stop()
			return nil
		},
	})
}
