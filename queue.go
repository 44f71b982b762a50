package gate

import "github.com/shopspring/decimal"

// queue is the FIFO of orders waiting for budget.
// Insertion order is send order. index maps every queued order id to its slot in orders
// and is rewritten for each shifted entry on removal.
type queue struct {
	orders []*QueuedOrder
	index  map[int64]int
}

func newQueue() *queue {
	return &queue{
		orders: make([]*QueuedOrder, 0, 64),
		index:  make(map[int64]int),
	}
}

// order finds a queued order by its ID.
func (q *queue) order(id int64) *QueuedOrder {
	pos, ok := q.index[id]
	if !ok {
		return nil
	}
	return q.orders[pos]
}

// position returns the zero-based slot of an order.
func (q *queue) position(id int64) (int, bool) {
	pos, ok := q.index[id]
	return pos, ok
}

// pushBack appends an order to the tail.
func (q *queue) pushBack(order *QueuedOrder) {
	q.orders = append(q.orders, order)
	q.index[order.OrderID] = len(q.orders) - 1
}

// removeOrder removes an order by ID, shifting later entries left by one slot.
func (q *queue) removeOrder(id int64) *QueuedOrder {
	pos, ok := q.index[id]
	if !ok {
		return nil
	}
	return q.removeAt(pos)
}

func (q *queue) removeAt(pos int) *QueuedOrder {
	order := q.orders[pos]
	last := len(q.orders) - 1

	copy(q.orders[pos:], q.orders[pos+1:])
	q.orders[last] = nil // drop the reference held by the backing array
	q.orders = q.orders[:last]
	delete(q.index, order.OrderID)

	for i := pos; i < len(q.orders); i++ {
		q.index[q.orders[i].OrderID] = i
	}

	return order
}

// updateOrder changes price and quantity in place, preserving the order's position.
func (q *queue) updateOrder(id int64, price, qty decimal.Decimal) bool {
	order := q.order(id)
	if order == nil {
		return false
	}
	order.Price = price
	order.Quantity = qty
	return true
}

// peekHeadOrder returns the order at the front of the queue without removing it.
func (q *queue) peekHeadOrder() *QueuedOrder {
	if len(q.orders) == 0 {
		return nil
	}
	return q.orders[0]
}

// popHeadOrder removes and returns the order at the front of the queue.
func (q *queue) popHeadOrder() *QueuedOrder {
	if len(q.orders) == 0 {
		return nil
	}
	return q.removeAt(0)
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int {
	return len(q.orders)
}

// reset drops every order and returns how many were removed.
func (q *queue) reset() int {
	n := len(q.orders)
	clear(q.orders)
	q.orders = q.orders[:0]
	q.index = make(map[int64]int)
	return n
}

// toSnapshot copies the queue in send order.
func (q *queue) toSnapshot() []QueuedOrder {
	snapshots := make([]QueuedOrder, 0, len(q.orders))
	for _, order := range q.orders {
		snapshots = append(snapshots, *order)
	}
	return snapshots
}
