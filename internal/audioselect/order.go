package audioselect

import (
	"errors"
	"fmt"
)

// ErrUnknownItem is returned when a command references an id outside the order.
var ErrUnknownItem = errors.New("audioselect: unknown item")

// Order is the current sequence of item ids with an id to position index.
// It is always a permutation of the ids it was created with.
type Order struct {
	ids []int
	pos map[int]int
}

// NewOrder builds an order from ids, keeping the first occurrence of duplicates.
func NewOrder(ids []int) *Order {
	o := &Order{
		ids: make([]int, 0, len(ids)),
		pos: make(map[int]int, len(ids)),
	}
	for _, id := range ids {
		if _, seen := o.pos[id]; seen {
			continue
		}
		o.pos[id] = len(o.ids)
		o.ids = append(o.ids, id)
	}
	return o
}

// Len returns the number of ids.
func (o *Order) Len() int {
	return len(o.ids)
}

// IDs returns a copy of the current sequence.
func (o *Order) IDs() []int {
	out := make([]int, len(o.ids))
	copy(out, o.ids)
	return out
}

// Position returns the 0-based position of id.
func (o *Order) Position(id int) (int, bool) {
	p, ok := o.pos[id]
	return p, ok
}

// Swap exchanges id with its predecessor. It reports whether the order changed.
func (o *Order) Swap(id int) (bool, error) {
	p, err := o.lookup(id)
	if err != nil {
		return false, err
	}
	if p == 0 {
		return false, nil
	}
	o.ids[p], o.ids[p-1] = o.ids[p-1], o.ids[p]
	o.pos[o.ids[p]] = p
	o.pos[o.ids[p-1]] = p - 1
	return true, nil
}

// Up moves id one position to the left.
func (o *Order) Up(id int) (bool, error) {
	p, err := o.lookup(id)
	if err != nil {
		return false, err
	}
	if p == 0 {
		return false, nil
	}
	o.move(p, p-1)
	return true, nil
}

// Down moves id one position to the right.
func (o *Order) Down(id int) (bool, error) {
	p, err := o.lookup(id)
	if err != nil {
		return false, err
	}
	if p == len(o.ids)-1 {
		return false, nil
	}
	o.move(p, p+1)
	return true, nil
}

func (o *Order) lookup(id int) (int, error) {
	p, ok := o.pos[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	return p, nil
}

// move removes the id at from and reinserts it at to, shifting the ids in between.
func (o *Order) move(from, to int) {
	id := o.ids[from]
	if from < to {
		copy(o.ids[from:to], o.ids[from+1:to+1])
	} else {
		copy(o.ids[to+1:from+1], o.ids[to:from])
	}
	o.ids[to] = id

	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi; i++ {
		o.pos[o.ids[i]] = i
	}
}
