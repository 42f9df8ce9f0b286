package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

func TestNameToDiscrimRoundTrip(t *testing.T) {
	cases := []string{"User", "PerpMarket", "SpotMarket"}
	for _, name := range cases {
		d := NameToAccountDiscrim(name)
		got, ok := DiscrimToName(d)
		require.True(t, ok)
		assert.Equal(t, name, got)
	}
}

func TestInstructionDiscrimRoundTrip(t *testing.T) {
	d := NameToInstructionDiscrim("place_order")
	got, ok := DiscrimToName(d)
	require.True(t, ok)
	assert.Equal(t, "place_order", got)
}

func TestUserAccountDiscriminatorIsWellKnown(t *testing.T) {
	assert.Equal(t, NameToAccountDiscrim("User"), UserAccountDiscriminator)
}

func TestDecodeAccountOwnerMismatchIsSkipNotError(t *testing.T) {
	program := dlobtypes.Pubkey{1}
	other := dlobtypes.Pubkey{2}
	acc, err := DecodeAccount(other, program, make([]byte, DiscriminatorLen+userEncodedLen))
	require.NoError(t, err)
	assert.Equal(t, AccountKindUnknown, acc.Kind)
}

func TestDecodeAccountUnknownDiscriminatorIsSkipNotError(t *testing.T) {
	program := dlobtypes.Pubkey{1}
	data := make([]byte, DiscriminatorLen+4)
	acc, err := DecodeAccount(program, program, data)
	require.NoError(t, err)
	assert.Equal(t, AccountKindUnknown, acc.Kind)
}

func TestUserEncodeDecodeRoundTrip(t *testing.T) {
	u := &dlobtypes.User{}
	u.Orders[0] = dlobtypes.Order{
		OrderID:          7,
		MarketType:       dlobtypes.MarketTypePerp,
		MarketIndex:      0,
		Status:           dlobtypes.OrderStatusOpen,
		OrderType:        dlobtypes.OrderTypeLimit,
		PriceType:        dlobtypes.PriceTypeFixed,
		Direction:        dlobtypes.DirectionLong,
		Slot:             10,
		AuctionStartSlot: 10,
		AuctionDuration:  5,
		Price:            100,
	}
	u.Orders[1] = dlobtypes.Order{
		OrderID:           8,
		Status:            dlobtypes.OrderStatusOpen,
		OrderType:         dlobtypes.OrderTypeLimit,
		PriceType:         dlobtypes.PriceTypeOracle,
		Direction:         dlobtypes.DirectionShort,
		OraclePriceOffset: -25,
	}

	wire := EncodeUser(u)

	program := dlobtypes.Pubkey{9, 9, 9}
	acc, err := DecodeAccount(program, program, wire)
	require.NoError(t, err)
	require.Equal(t, AccountKindUser, acc.Kind)
	assert.Equal(t, *u, *acc.User)
}

func TestDecodeAccountMalformedUserPayloadIsError(t *testing.T) {
	program := dlobtypes.Pubkey{3}
	wire := append(UserAccountDiscriminator[:], []byte{1, 2, 3}...)
	_, err := DecodeAccount(program, program, wire)
	assert.Error(t, err)
}
