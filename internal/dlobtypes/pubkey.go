package dlobtypes

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Pubkey is a 32-byte on-chain account/program address.
type Pubkey [32]byte

// String renders the key in the base58 form used by the chain the DLOB mirrors.
func (k Pubkey) String() string {
	return base58.Encode(k[:])
}

// PubkeyFromBase58 parses a base58-encoded key, e.g. from config or logs.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var k Pubkey
	decoded, err := base58.Decode(s)
	if err != nil {
		return k, err
	}
	if len(decoded) != len(k) {
		return k, fmt.Errorf("dlobtypes: invalid pubkey length %d, want %d", len(decoded), len(k))
	}
	copy(k[:], decoded)
	return k, nil
}
