package dlob

import (
	"container/heap"
	"sync"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// nominalPrice is the key the lane's internal heap sorts by. For
// Fixed-priced orders this is the real price; for Oracle-priced
// (floating) orders the true price depends on an oracle reading that is
// not available at insertion time, so the offset stands in as a
// deterministic internal ordering. It only affects drain order within a
// single lane — get_resting_limit_bids/asks re-sorts the floating lane's
// output by the true, oracle-evaluated price before returning it to
// callers (see DLOB.getRestingLimitSide), so this proxy never leaks as a wrong
// "best price" to a reader.
func nominalPrice(order dlobtypes.Order) int64 {
	if order.PriceType == dlobtypes.PriceTypeOracle {
		return order.OraclePriceOffset
	}
	return order.Price
}

// orderHeap is a container/heap.Interface over OrderNodes, ordered
// highest-price-first (bids) or lowest-price-first (asks) depending on
// ascending, with insertion sequence as tiebreak so repeated
// best-extractions are deterministic.
type orderHeap struct {
	items     []*OrderNode
	ascending bool
}

func (h *orderHeap) Len() int { return len(h.items) }

func (h *orderHeap) Less(i, j int) bool {
	pi, pj := nominalPrice(h.items[i].Order), nominalPrice(h.items[j].Order)
	if pi != pj {
		if h.ascending {
			return pi < pj
		}
		return pi > pj
	}
	return h.items[i].seq < h.items[j].seq
}

func (h *orderHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *orderHeap) Push(x interface{}) {
	h.items = append(h.items, x.(*OrderNode))
}

func (h *orderHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}

// OrderList is the per-(market, lane) dual heap of bids/asks plus a
// sig->node index that makes logical deletion O(1): removing the map
// entry is enough, the heap entry is discarded lazily the next time it
// reaches the top of a pop.
//
// Invariant: every node in a heap has (or had) a bySig entry under the
// same list. The converse does not hold — a bySig entry can be removed
// without touching the heap.
type OrderList struct {
	mu      sync.Mutex
	bids    *orderHeap
	asks    *orderHeap
	bySig   map[string]*OrderNode
	nextSeq uint64
}

// NewOrderList creates an empty OrderList.
func NewOrderList() *OrderList {
	l := &OrderList{
		bids:  &orderHeap{ascending: false},
		asks:  &orderHeap{ascending: true},
		bySig: make(map[string]*OrderNode),
	}
	heap.Init(l.bids)
	heap.Init(l.asks)
	return l
}

// InsertBid registers node under its sig and pushes it onto the bid
// heap. O(log n).
func (l *OrderList) InsertBid(node *OrderNode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	node.seq = l.nextSeq
	l.nextSeq++
	l.bySig[node.Sig()] = node
	heap.Push(l.bids, node)
}

// InsertAsk registers node under its sig and pushes it onto the ask
// heap. O(log n).
func (l *OrderList) InsertAsk(node *OrderNode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	node.seq = l.nextSeq
	l.nextSeq++
	l.bySig[node.Sig()] = node
	heap.Push(l.asks, node)
}

// GetBestBid pops the heap top; if its sig is still present in the map,
// the map entry is removed and the node is returned. Otherwise the pop
// is stale (its sig was logically deleted, or already returned through
// another heap entry sharing the same sig — see spec Open Question on
// update_user) and it is discarded, repeating until a live node surfaces
// or the heap empties. When a later insert has overwritten a sig's map
// entry, whichever heap entry for that sig pops first is returned, even
// if it is the older node.
//
// This is intentionally the only place that reclaims logical deletions;
// it does not verify the map entry still points at the popped node
// itself, only that the sig key exists, matching the documented (not
// silently fixed) shadow-vs-replace behavior of update_user.
func (l *OrderList) GetBestBid() (*OrderNode, bool) {
	return l.getBest(l.bids)
}

// GetBestAsk mirrors GetBestBid for the ask heap.
func (l *OrderList) GetBestAsk() (*OrderNode, bool) {
	return l.getBest(l.asks)
}

func (l *OrderList) getBest(h *orderHeap) (*OrderNode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for h.Len() > 0 {
		top := heap.Pop(h).(*OrderNode)
		sig := top.Sig()
		if _, live := l.bySig[sig]; live {
			delete(l.bySig, sig)
			return top, true
		}
	}
	return nil, false
}

// GetNode looks up a node by sig without mutating the list. It always
// reflects the most recently inserted node for that sig, even if a
// stale heap entry for an older node with the same sig is still buried
// in the heap.
func (l *OrderList) GetNode(sig string) (*OrderNode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	node, ok := l.bySig[sig]
	return node, ok
}

// BidsEmpty reports whether the bid heap has no nodes left to drain.
// Like Len, it counts stale entries still physically present in the
// heap; only GetBestBid's lazy reclamation tells live from stale.
func (l *OrderList) BidsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bids.Len() == 0
}

// AsksEmpty mirrors BidsEmpty for the ask heap.
func (l *OrderList) AsksEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.asks.Len() == 0
}

// Size returns the number of live sigs registered in this list —
// insertions minus successful GetBestBid/GetBestAsk pops — regardless of
// how many stale heap entries remain to be reclaimed.
func (l *OrderList) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bySig)
}

// PeekAll returns every live node currently indexed by sig, without
// draining either heap. This is the non-destructive diagnostic variant
// spec.md §9 Open Question 1 calls for alongside the destructive
// get_best_orders path; it is not used by get_resting_limit_bids/asks.
func (l *OrderList) PeekAll() []*OrderNode {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*OrderNode, 0, len(l.bySig))
	for _, n := range l.bySig {
		out = append(out, n)
	}
	return out
}
