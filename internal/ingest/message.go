package ingest

import (
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// Kind discriminates the payload a Message carries.
type Kind int

const (
	// KindSlot carries a new chain slot number (clock tick).
	KindSlot Kind = iota
	// KindAccount carries a raw account update (owner + data), still
	// undecoded.
	KindAccount
	// KindTx is reserved for future transaction-level ingestion; no
	// SPEC_FULL.md component currently produces it.
	KindTx
	// KindBlock is reserved for future block-level ingestion; no
	// SPEC_FULL.md component currently produces it.
	KindBlock
)

// Message is the ingest transport's wire shape: one tagged union per
// update source event, flattened into a single struct the way the
// teacher's event bus flattens its payloads onto a single JSON
// envelope. Only the fields matching Kind are populated.
type Message struct {
	Kind Kind

	// KindSlot
	Slot uint64

	// KindAccount
	Owner         dlobtypes.Pubkey
	AccountPubkey dlobtypes.Pubkey
	Data          []byte
}
