// Package ledger keeps count of the consumable resources of the local machine.
// It is not safe for concurrent use: the standalone scheduler only touches it
// while holding its registry lock.
package ledger

import (
	"fmt"
)

type Type string

const CPU Type = "cpu"

type stock struct {
	total     int
	available int
}

// Reservation is the receipt of a successful Reserve. It must be given back to
// Pool.Release exactly once.
type Reservation struct {
	kind     Type
	amount   int
	released bool
}

func (r *Reservation) Type() Type {
	return r.kind
}

func (r *Reservation) Amount() int {
	return r.amount
}

type Pool struct {
	resources   map[Type]*stock
	outstanding map[Type]int
}

func NewPool(totals map[Type]int) *Pool {
	pool := &Pool{
		resources:   make(map[Type]*stock, len(totals)),
		outstanding: make(map[Type]int, len(totals)),
	}
	for kind, total := range totals {
		if total < 0 {
			panic(fmt.Sprintf("ledger: negative total %d for resource '%s'", total, kind))
		}
		pool.resources[kind] = &stock{total: total, available: total}
	}
	return pool
}

func (p *Pool) Available(kind Type) int {
	return p.mustGet(kind).available
}

func (p *Pool) Total(kind Type) int {
	return p.mustGet(kind).total
}

// Outstanding is the sum of all reservations of the given type not yet released.
func (p *Pool) Outstanding(kind Type) int {
	p.mustGet(kind)
	return p.outstanding[kind]
}

// Fits reports whether amount could be reserved right now.
func (p *Pool) Fits(kind Type, amount int) bool {
	resource, ok := p.resources[kind]
	return ok && amount >= 0 && amount <= resource.available
}

func (p *Pool) Reserve(kind Type, amount int) (*Reservation, error) {
	resource, ok := p.resources[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource '%s'", kind)
	}
	if amount < 0 {
		return nil, fmt.Errorf("cannot reserve a negative amount (%d) of '%s'", amount, kind)
	}
	if amount > resource.available {
		return nil, fmt.Errorf("cannot reserve %d '%s': only %d of %d available", amount, kind, resource.available, resource.total)
	}

	resource.available -= amount
	p.outstanding[kind] += amount
	return &Reservation{kind: kind, amount: amount}, nil
}

// Release gives a reservation back to the pool. Releasing twice, or releasing a
// reservation the pool does not know about, means the caller's bookkeeping is
// broken and panics.
func (p *Pool) Release(reservation *Reservation) {
	if reservation == nil {
		panic("ledger: release of a nil reservation")
	}
	if reservation.released {
		panic(fmt.Sprintf("ledger: reservation of %d '%s' released twice", reservation.amount, reservation.kind))
	}

	resource, ok := p.resources[reservation.kind]
	if !ok {
		panic(fmt.Sprintf("ledger: release of a reservation for unknown resource '%s'", reservation.kind))
	}
	if resource.available+reservation.amount > resource.total {
		panic(fmt.Sprintf("ledger: releasing %d '%s' would exceed the total of %d", reservation.amount, reservation.kind, resource.total))
	}

	reservation.released = true
	resource.available += reservation.amount
	p.outstanding[reservation.kind] -= reservation.amount
}

func (p *Pool) mustGet(kind Type) *stock {
	resource, ok := p.resources[kind]
	if !ok {
		panic(fmt.Sprintf("ledger: unknown resource '%s'", kind))
	}
	return resource
}
