package dlob

// Market is one (market-kind, market-index) pair's five lanes, one
// OrderList per NodeKind. It holds no lock of its own: each OrderList
// guards itself, so inserts/pops/promotions serialize per (market, lane)
// rather than per market, matching spec.md §5's "naturally partitioned
// by market" contention model.
type Market struct {
	lists map[NodeKind]*OrderList
}

// NewMarket creates a Market with all five lanes initialized empty.
func NewMarket() *Market {
	m := &Market{lists: make(map[NodeKind]*OrderList, len(allNodeKinds))}
	for _, k := range allNodeKinds {
		m.lists[k] = NewOrderList()
	}
	return m
}

// ListFor returns the OrderList a node of the given kind is inserted
// into and read from — the same mapping serves both directions in the
// current design.
func (m *Market) ListFor(kind NodeKind) *OrderList {
	return m.lists[kind]
}

// Size sums the live sig count across all five lanes.
func (m *Market) Size() int {
	total := 0
	for _, l := range m.lists {
		total += l.Size()
	}
	return total
}
