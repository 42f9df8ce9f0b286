package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/abdoElHodaky/dlob-go/internal/dlob"
)

// Reporter periodically samples a DLOB's lane sizes into the LaneSize
// gauge vector. It is a thin ticker loop in the same shape as the
// teacher's background updaters elsewhere in this service.
type Reporter struct {
	collectors *Collectors
	book       *dlob.DLOB
	interval   time.Duration
}

// NewReporter creates a Reporter. It does nothing until Run is called.
func NewReporter(collectors *Collectors, book *dlob.DLOB, interval time.Duration) *Reporter {
	return &Reporter{collectors: collectors, book: book, interval: interval}
}

// Run samples on every tick until ctx is canceled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *Reporter) sample() {
	for _, lane := range r.book.LaneSizes() {
		r.collectors.LaneSize.WithLabelValues(
			lane.MarketType.String(),
			strconv.FormatUint(uint64(lane.MarketIndex), 10),
			lane.Kind.String(),
		).Set(float64(lane.Size))
	}
}
