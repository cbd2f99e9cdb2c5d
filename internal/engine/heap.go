package engine

import "container/heap"

// orderHeap is a binary heap of resting orders. Entries are never removed
// out of order: cancelled or exhausted orders stay in place until they
// surface at the top and the book discards them.
type orderHeap struct {
	orders []*Order
	less   func(a, b *Order) bool
}

var _ heap.Interface = (*orderHeap)(nil)

// bidLess ranks the highest price first, then the oldest sequence.
func bidLess(a, b *Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.Seq < b.Seq
}

// askLess ranks the lowest price first, then the oldest sequence.
func askLess(a, b *Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.Seq < b.Seq
}

func newOrderHeap(less func(a, b *Order) bool) *orderHeap {
	return &orderHeap{less: less}
}

func (h *orderHeap) Len() int           { return len(h.orders) }
func (h *orderHeap) Less(i, j int) bool { return h.less(h.orders[i], h.orders[j]) }
func (h *orderHeap) Swap(i, j int)      { h.orders[i], h.orders[j] = h.orders[j], h.orders[i] }

func (h *orderHeap) Push(x any) {
	h.orders = append(h.orders, x.(*Order))
}

func (h *orderHeap) Pop() any {
	old := h.orders
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	h.orders = old[:n-1]
	return o
}

// top returns the highest ranked active order, popping stale entries on the way.
func (h *orderHeap) top() *Order {
	for len(h.orders) > 0 {
		o := h.orders[0]
		if o.active() {
			return o
		}
		heap.Pop(h)
	}
	return nil
}
