package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/dlob-go/internal/decode"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

type stubFetcher struct {
	accounts []RawAccount
	slot     uint64
	err      error
	calls    int
}

func (s *stubFetcher) FetchProgramAccounts(ctx context.Context, programID dlobtypes.Pubkey) ([]RawAccount, uint64, error) {
	s.calls++
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.accounts, s.slot, nil
}

func programKey(b byte) dlobtypes.Pubkey {
	var p dlobtypes.Pubkey
	p[0] = b
	return p
}

func TestClientFetchDecodesUserAccountsAndSkipsOthers(t *testing.T) {
	program := programKey(1)
	user := &dlobtypes.User{}
	user.Orders[0] = dlobtypes.Order{OrderID: 5, Status: dlobtypes.OrderStatusOpen, OrderType: dlobtypes.OrderTypeLimit, PriceType: dlobtypes.PriceTypeFixed, Direction: dlobtypes.DirectionLong}
	encoded := decode.EncodeUser(user)

	fetcher := &stubFetcher{
		accounts: []RawAccount{
			{Pubkey: programKey(2), Owner: program, Data: encoded},
			{Pubkey: programKey(3), Owner: programKey(9), Data: []byte("irrelevant")}, // wrong owner: skip
		},
		slot: 100,
	}

	c := New(fetcher, program, time.Second, Settings{MaxRequests: 1, Interval: time.Second, Timeout: time.Second}, nil)
	users, slot, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), slot)
	require.Len(t, users, 1)
	assert.Equal(t, uint32(5), users[programKey(2)].Orders[0].OrderID)
}

func TestClientFetchWrapsFetcherError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("rpc unavailable")}
	c := New(fetcher, programKey(1), time.Second, Settings{MaxRequests: 1, Interval: time.Second, Timeout: time.Second}, nil)

	_, _, err := c.Fetch(context.Background())
	require.Error(t, err)
}
