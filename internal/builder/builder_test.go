package builder

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

type fetchCounter struct {
	n int64
}

func (f *fetchCounter) Fetch(ctx context.Context) (map[dlobtypes.Pubkey]*dlobtypes.User, uint64, error) {
	slot := atomic.AddInt64(&f.n, 1)
	return map[dlobtypes.Pubkey]*dlobtypes.User{}, uint64(slot), nil
}

func TestBuilderRunsInitialRebuildSynchronously(t *testing.T) {
	book := dlob.New(nil)
	src := &fetchCounter{}
	b := New(book, src, time.Hour, nil)

	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	assert.True(t, book.Initialized())
	assert.Equal(t, int64(1), atomic.LoadInt64(&src.n))
}

func TestBuilderTicksPeriodically(t *testing.T) {
	book := dlob.New(nil)
	src := &fetchCounter{}
	b := New(book, src, 10*time.Millisecond, nil)

	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&src.n) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestBuilderStopEndsTheLoop(t *testing.T) {
	book := dlob.New(nil)
	src := &fetchCounter{}
	b := New(book, src, 5*time.Millisecond, nil)

	require.NoError(t, b.Start(context.Background()))
	b.Stop()

	n := atomic.LoadInt64(&src.n)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt64(&src.n))
}
