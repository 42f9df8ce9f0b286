// Package builder drives periodic full rebuilds of a DLOB from whatever
// snapshot source is configured, the way the teacher's market data
// service runs its own ticker-driven background updater.
package builder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// Source supplies the (users, slot) pair a rebuild needs. The snapshot
// RPC client (snapshot.Client) satisfies this.
type Source interface {
	Fetch(ctx context.Context) (map[dlobtypes.Pubkey]*dlobtypes.User, uint64, error)
}

// RebuildRecorder receives one notification per completed wholesale
// rebuild. An interface for the same reason dlob.MetricsSink is one:
// keeps internal/metrics from having to be imported here.
type RebuildRecorder interface {
	RebuildPerformed()
}

type noopRebuildRecorder struct{}

func (noopRebuildRecorder) RebuildPerformed() {}

// Builder ticks at Interval, calling Source.Fetch and rebuilding the book
// wholesale from the result.
type Builder struct {
	book     *dlob.DLOB
	source   Source
	interval time.Duration
	metrics  RebuildRecorder
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Builder. It does nothing until Start is called.
func New(book *dlob.DLOB, source Source, interval time.Duration, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		book:     book,
		source:   source,
		interval: interval,
		metrics:  noopRebuildRecorder{},
		logger:   logger,
	}
}

// WithMetrics attaches a RebuildRecorder notified after every completed
// rebuild. Returns the Builder for chaining at construction time.
func (b *Builder) WithMetrics(rec RebuildRecorder) *Builder {
	if rec == nil {
		rec = noopRebuildRecorder{}
	}
	b.metrics = rec
	return b
}

// Start runs an initial rebuild synchronously, then launches the ticker
// loop in the background.
func (b *Builder) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.rebuildOnce(b.ctx); err != nil {
		return err
	}

	b.wg.Add(1)
	go b.loop()
	return nil
}

// Stop cancels the ticker loop and waits for it to exit.
func (b *Builder) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *Builder) loop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if err := b.rebuildOnce(b.ctx); err != nil {
				b.logger.Error("periodic rebuild failed", zap.Error(err))
			}
		}
	}
}

func (b *Builder) rebuildOnce(ctx context.Context) error {
	users, slot, err := b.source.Fetch(ctx)
	if err != nil {
		return err
	}
	b.book.BuildFromUserMap(users, slot)
	b.metrics.RebuildPerformed()
	b.logger.Debug("periodic rebuild complete", zap.Uint64("slot", slot), zap.Int("users", len(users)))
	return nil
}
