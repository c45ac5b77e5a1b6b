package cart

import (
	"context"

	"github.com/fjod/go_storefront/internal/domain"
)

// Op is the pending backend reconciliation of one cart mutation.
type Op struct {
	done chan struct{}
	cart *domain.Cart
	err  error
}

func newOp() *Op {
	return &Op{done: make(chan struct{})}
}

func failedOp(err error) *Op {
	op := newOp()
	op.finish(nil, err)
	return op
}

func (o *Op) finish(cart *domain.Cart, err error) {
	o.cart = cart
	o.err = err
	close(o.done)
}

// Done is closed once the backend call has landed.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Err reports the mutation's outcome; nil while it is still in flight.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Cart is the backend cart this mutation produced, nil on failure or while in flight.
func (o *Op) Cart() *domain.Cart {
	select {
	case <-o.done:
		return o.cart
	default:
		return nil
	}
}

// Wait blocks until the mutation lands or ctx ends. Giving up on the wait
// does not cancel the backend call.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
