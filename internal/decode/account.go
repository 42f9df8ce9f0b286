package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// AccountKind tags the result of DecodeAccount. Only User is meaningful
// to the DLOB core; everything else this program might emit is folded
// into AccountKindOther so the ingest loop can ignore it uniformly.
type AccountKind int8

const (
	AccountKindUnknown AccountKind = iota
	AccountKindUser
	AccountKindOther
)

// DecodedAccount is the tagged variant DecodeAccount returns: exactly one
// of AccountKindUser's User field is populated.
type DecodedAccount struct {
	Kind AccountKind
	User *dlobtypes.User
}

// orderEncodedLen is the fixed wire size of one Order, see layout in
// encodeOrder/decodeOrder below.
const orderEncodedLen = 4 + 1 + 2 + 1 + 1 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 1

// userEncodedLen is the fixed wire size of a User account payload
// (discriminator excluded).
const userEncodedLen = dlobtypes.MaxUserOrders * orderEncodedLen

// DecodeAccount implements the account decode interface spec.md §6
// describes: given the account's program owner and raw bytes, return a
// tagged variant. An owner that does not match targetProgram, or a
// discriminator this process does not recognize, is a decode-skip
// (AccountKindUnknown/Other, nil error) — never an error. A recognized
// discriminator whose payload fails to parse returns an error. The ingest
// loop does not stop on that error: ingest.Ingester logs the update at
// Warn and skips it, and snapshot.Client skips the account.
func DecodeAccount(owner, targetProgram dlobtypes.Pubkey, data []byte) (DecodedAccount, error) {
	if owner != targetProgram {
		return DecodedAccount{Kind: AccountKindUnknown}, nil
	}
	if len(data) < DiscriminatorLen {
		return DecodedAccount{}, fmt.Errorf("decode: account data shorter than discriminator: %d bytes", len(data))
	}

	var d Discriminator
	copy(d[:], data[:DiscriminatorLen])
	payload := data[DiscriminatorLen:]

	switch d {
	case UserAccountDiscriminator:
		user, err := DecodeUser(payload)
		if err != nil {
			return DecodedAccount{}, fmt.Errorf("decode: malformed User account: %w", err)
		}
		return DecodedAccount{Kind: AccountKindUser, User: user}, nil
	default:
		if _, known := DiscrimToName(d); known {
			return DecodedAccount{Kind: AccountKindOther}, nil
		}
		return DecodedAccount{Kind: AccountKindUnknown}, nil
	}
}

// EncodeUser produces the discriminator-prefixed wire form of a User
// account, the inverse of DecodeAccount for AccountKindUser. Used by
// tests to exercise the round-trip law spec.md §8 requires.
func EncodeUser(u *dlobtypes.User) []byte {
	out := make([]byte, 0, DiscriminatorLen+userEncodedLen)
	out = append(out, UserAccountDiscriminator[:]...)
	for i := range u.Orders {
		out = encodeOrder(out, &u.Orders[i])
	}
	return out
}

// DecodeUser parses a User account payload (discriminator already
// stripped).
func DecodeUser(payload []byte) (*dlobtypes.User, error) {
	if len(payload) != userEncodedLen {
		return nil, fmt.Errorf("decode: User payload is %d bytes, want %d", len(payload), userEncodedLen)
	}
	u := &dlobtypes.User{}
	off := 0
	for i := range u.Orders {
		decodeOrder(payload[off:off+orderEncodedLen], &u.Orders[i])
		off += orderEncodedLen
	}
	return u, nil
}

func encodeOrder(out []byte, o *dlobtypes.Order) []byte {
	var buf [orderEncodedLen]byte
	binary.LittleEndian.PutUint32(buf[0:4], o.OrderID)
	buf[4] = byte(o.MarketType)
	binary.LittleEndian.PutUint16(buf[5:7], o.MarketIndex)
	buf[7] = byte(o.Status)
	buf[8] = byte(o.OrderType)
	buf[9] = byte(o.PriceType)
	buf[10] = byte(o.Direction)
	binary.LittleEndian.PutUint64(buf[11:19], o.Slot)
	binary.LittleEndian.PutUint64(buf[19:27], o.AuctionStartSlot)
	binary.LittleEndian.PutUint64(buf[27:35], o.AuctionDuration)
	binary.LittleEndian.PutUint64(buf[35:43], uint64(o.Price))
	binary.LittleEndian.PutUint64(buf[43:51], uint64(o.OraclePriceOffset))
	binary.LittleEndian.PutUint64(buf[51:59], uint64(o.TriggerPrice))
	buf[59] = byte(o.TriggerCondition)
	return append(out, buf[:]...)
}

func decodeOrder(b []byte, o *dlobtypes.Order) {
	o.OrderID = binary.LittleEndian.Uint32(b[0:4])
	o.MarketType = dlobtypes.MarketType(b[4])
	o.MarketIndex = binary.LittleEndian.Uint16(b[5:7])
	o.Status = dlobtypes.OrderStatus(b[7])
	o.OrderType = dlobtypes.OrderType(b[8])
	o.PriceType = dlobtypes.PriceType(b[9])
	o.Direction = dlobtypes.Direction(b[10])
	o.Slot = binary.LittleEndian.Uint64(b[11:19])
	o.AuctionStartSlot = binary.LittleEndian.Uint64(b[19:27])
	o.AuctionDuration = binary.LittleEndian.Uint64(b[27:35])
	o.Price = int64(binary.LittleEndian.Uint64(b[35:43]))
	o.OraclePriceOffset = int64(binary.LittleEndian.Uint64(b[43:51]))
	o.TriggerPrice = int64(binary.LittleEndian.Uint64(b[51:59]))
	o.TriggerCondition = dlobtypes.TriggerCondition(b[59])
}
