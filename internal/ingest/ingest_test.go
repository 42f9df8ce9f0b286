package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/dlob-go/internal/decode"
	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

const testSubject = "dlob.accounts.test"

func newTestPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
}

func programPubkey(b byte) dlobtypes.Pubkey {
	var p dlobtypes.Pubkey
	p[0] = b
	return p
}

func TestIngesterAppliesSlotAndAccountMessages(t *testing.T) {
	pubsub := newTestPubSub()
	defer pubsub.Close()

	book := dlob.New(nil)
	program := programPubkey(7)

	ing, err := New(book, pubsub, testSubject, Config{TargetProgram: program, WorkerPoolSize: 2}, nil)
	require.NoError(t, err)
	defer ing.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = ing.Run(ctx)
		close(done)
	}()

	slotMsg := mustMarshal(t, Message{Kind: KindSlot, Slot: 42})
	require.NoError(t, pubsub.Publish(testSubject, message.NewMessage(watermill.NewUUID(), slotMsg)))

	user := &dlobtypes.User{}
	user.Orders[0] = dlobtypes.Order{
		OrderID:          1,
		MarketType:       dlobtypes.MarketTypePerp,
		Status:           dlobtypes.OrderStatusOpen,
		OrderType:        dlobtypes.OrderTypeLimit,
		PriceType:        dlobtypes.PriceTypeFixed,
		Direction:        dlobtypes.DirectionLong,
		AuctionStartSlot: 0,
		AuctionDuration:  0,
		Slot:             40,
		Price:            100,
	}
	accountKey := programPubkey(9)
	encoded := decode.EncodeUser(user)

	accMsg := mustMarshal(t, Message{Kind: KindAccount, Owner: program, AccountPubkey: accountKey, Data: encoded})
	require.NoError(t, pubsub.Publish(testSubject, message.NewMessage(watermill.NewUUID(), accMsg)))

	require.Eventually(t, func() bool {
		_, ok := book.GetOrder(1, accountKey)
		return ok
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(42), ing.Slot())

	cancel()
	<-done
}

// TestIngesterAppliesAccountUpdatesInReceiveOrder guards against decode
// fan-out reordering two updates for the same user: the last message
// published must be the one the book reflects, even though decode runs
// on a pool with more than one worker.
func TestIngesterAppliesAccountUpdatesInReceiveOrder(t *testing.T) {
	pubsub := newTestPubSub()
	defer pubsub.Close()

	book := dlob.New(nil)
	program := programPubkey(7)

	ing, err := New(book, pubsub, testSubject, Config{TargetProgram: program, WorkerPoolSize: 8}, nil)
	require.NoError(t, err)
	defer ing.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = ing.Run(ctx)
		close(done)
	}()

	accountKey := programPubkey(11)
	const updates = 50
	for i := 1; i <= updates; i++ {
		user := &dlobtypes.User{}
		user.Orders[0] = dlobtypes.Order{
			OrderID:    1,
			MarketType: dlobtypes.MarketTypePerp,
			Status:     dlobtypes.OrderStatusOpen,
			OrderType:  dlobtypes.OrderTypeLimit,
			PriceType:  dlobtypes.PriceTypeFixed,
			Direction:  dlobtypes.DirectionLong,
			Slot:       uint64(i),
			Price:      int64(i),
		}
		accMsg := mustMarshal(t, Message{Kind: KindAccount, Owner: program, AccountPubkey: accountKey, Data: decode.EncodeUser(user)})
		require.NoError(t, pubsub.Publish(testSubject, message.NewMessage(watermill.NewUUID(), accMsg)))
	}

	require.Eventually(t, func() bool {
		order, ok := book.GetOrder(1, accountKey)
		return ok && order.Price == int64(updates)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func mustMarshal(t *testing.T, m Message) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}
