package orderbook

import "lob/infra/memory"

type queueNode struct {
	order Order
	prev  *queueNode
	next  *queueNode
}

var nodePool = memory.NewPool(
	func() *queueNode { return &queueNode{} },
	func(n *queueNode) { *n = queueNode{} },
)

// OrderQueue is the FIFO of resting orders at one price. Arrival order is
// list order; the head is always the next order to match.
//
// Invariant: volume equals the sum of the quantities of the queued orders.
type OrderQueue struct {
	price  float64
	volume float64
	head   *queueNode
	tail   *queueNode
	length int
	byID   map[string]*queueNode
}

func NewOrderQueue(price float64) *OrderQueue {
	return &OrderQueue{
		price: price,
		byID:  make(map[string]*queueNode),
	}
}

func (q *OrderQueue) Len() int        { return q.length }
func (q *OrderQueue) Price() float64  { return q.price }
func (q *OrderQueue) Volume() float64 { return q.volume }

// Head returns the earliest order without removing it.
func (q *OrderQueue) Head() (Order, bool) {
	if q.head == nil {
		return Order{}, false
	}
	return q.head.order, true
}

// Tail returns the latest order without removing it.
func (q *OrderQueue) Tail() (Order, bool) {
	if q.tail == nil {
		return Order{}, false
	}
	return q.tail.order, true
}

// Append adds o at the back of the queue.
func (q *OrderQueue) Append(o Order) {
	n := nodePool.Get()
	n.order = o
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
		n.prev = q.tail
	}
	q.tail = n
	q.length++
	q.volume += o.quantity
	q.byID[o.id] = n
}

// RemoveHead removes and returns the earliest order.
func (q *OrderQueue) RemoveHead() (Order, bool) {
	if q.head == nil {
		return Order{}, false
	}
	return q.unlink(q.head), true
}

// Update replaces the order at position (0 is the head) and returns the
// order it replaced. The replacement keeps the slot, so a size reduction
// does not cost the order its time priority.
func (q *OrderQueue) Update(position int, o Order) (Order, bool) {
	n := q.nodeAt(position)
	if n == nil {
		return Order{}, false
	}
	return q.replace(n, o), true
}

// Remove removes the order at position. It walks the list; cancellation
// by id should use RemoveByID.
func (q *OrderQueue) Remove(position int) (Order, bool) {
	n := q.nodeAt(position)
	if n == nil {
		return Order{}, false
	}
	return q.unlink(n), true
}

// Find returns the queued order with the given id.
func (q *OrderQueue) Find(id string) (Order, bool) {
	n, ok := q.byID[id]
	if !ok {
		return Order{}, false
	}
	return n.order, true
}

// RemoveByID removes the order with the given id wherever it sits.
func (q *OrderQueue) RemoveByID(id string) (Order, bool) {
	n, ok := q.byID[id]
	if !ok {
		return Order{}, false
	}
	return q.unlink(n), true
}

// Orders returns a copy of the queued orders, head first.
func (q *OrderQueue) Orders() []Order {
	out := make([]Order, 0, q.length)
	for n := q.head; n != nil; n = n.next {
		out = append(out, n.order)
	}
	return out
}

func (q *OrderQueue) nodeAt(position int) *queueNode {
	if position < 0 || position >= q.length {
		return nil
	}
	n := q.head
	for i := 0; i < position; i++ {
		n = n.next
	}
	return n
}

func (q *OrderQueue) replace(n *queueNode, o Order) Order {
	old := n.order
	if old.id != o.id {
		delete(q.byID, old.id)
		q.byID[o.id] = n
	}
	n.order = o
	q.volume += o.quantity - old.quantity
	return old
}

func (q *OrderQueue) unlink(n *queueNode) Order {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.tail = n.prev
	}
	o := n.order
	delete(q.byID, o.id)
	q.length--
	q.volume -= o.quantity
	if q.length == 0 {
		// drop accumulated float error once the level is empty
		q.volume = 0
	}
	nodePool.Put(n)
	return o
}
