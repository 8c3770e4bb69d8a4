package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// EOF is returned by batch sources when they are exhausted.
var EOF = errors.New("pipeline exhausted") //nolint:revive,staticcheck

// ContinueFuture is a pending-completion handle. It is returned by operations
// that could not complete immediately, typically because a downstream queue
// is at capacity, and resolves once the operation may be retried or resumed.
// Closing the owning coordination primitive resolves all of its outstanding
// futures, so a blocked driver can always be woken early.
type ContinueFuture <-chan struct{}

// wait blocks until the future resolves or the context is done.
func (f ContinueFuture) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-f:
		return nil
	}
}

// Operator is one stage of an executable pipeline. Batches are pushed in with
// AddInput and pulled out with GetOutput. Source operators at the head of a
// pipeline never receive input; sink operators at its tail never produce
// output.
type Operator interface {
	// OperatorID returns the dense, 0-based position of the operator in its
	// driver, assigned in construction order after fusion.
	OperatorID() int
	// PlanNodeID returns the ID of the plan node the operator was created
	// from.
	PlanNodeID() string

	// AddInput pushes one batch into the operator. A non-nil ContinueFuture
	// means the batch was accepted but the caller must wait for the future to
	// resolve before pushing more input.
	AddInput(ctx context.Context, batch arrow.Record) (ContinueFuture, error)
	// NoMoreInput signals that no further batches will be pushed.
	NoMoreInput()
	// GetOutput returns the next ready output batch, or nil if no batch is
	// ready yet.
	GetOutput(ctx context.Context) (arrow.Record, error)
	// Finished reports whether the operator will never produce output again.
	Finished() bool
	// Close releases any resources held by the operator.
	Close() error
}

type baseOperator struct {
	id     int
	nodeID string
}

func (o baseOperator) OperatorID() int    { return o.id }
func (o baseOperator) PlanNodeID() string { return o.nodeID }

// Consumer receives the output batches of a pipeline. A nil batch signals
// that the pipeline is exhausted. A non-nil ContinueFuture tells the
// producing driver to pause until the future resolves.
type Consumer func(ctx context.Context, batch arrow.Record) (ContinueFuture, error)

// ConsumerFactory returns one Consumer per driver of the output pipeline.
type ConsumerFactory func() Consumer

// OperatorSupplier produces the terminal sink operator for one driver of a
// pipeline. The id is the operator's position in the driver.
type OperatorSupplier func(id int, dctx *DriverCtx) (Operator, error)

// OperatorFactory translates plan nodes outside the built-in set into
// operators. Factories are consulted in registration order.
type OperatorFactory interface {
	// ToOperator returns an operator for the given node. It returns false if
	// the factory does not handle the node's kind.
	ToOperator(dctx *DriverCtx, id int, node physical.Node) (Operator, bool, error)
	// MaxDrivers returns the node's declared cap on concurrent drivers. It
	// returns false if the factory has no opinion on the node.
	MaxDrivers(node physical.Node) (int, bool)
}

var (
	operatorFactoriesMtx sync.RWMutex
	operatorFactories    []OperatorFactory
)

// RegisterOperatorFactory adds a factory consulted for plan nodes that have
// no built-in operator. It returns a function that removes the factory again.
func RegisterOperatorFactory(f OperatorFactory) (unregister func()) {
	operatorFactoriesMtx.Lock()
	defer operatorFactoriesMtx.Unlock()
	operatorFactories = append(operatorFactories, f)

	return func() {
		operatorFactoriesMtx.Lock()
		defer operatorFactoriesMtx.Unlock()
		for i, other := range operatorFactories {
			if other == f {
				operatorFactories = append(operatorFactories[:i], operatorFactories[i+1:]...)
				return
			}
		}
	}
}

func operatorFromPlanNode(dctx *DriverCtx, id int, node physical.Node) (Operator, bool, error) {
	operatorFactoriesMtx.RLock()
	defer operatorFactoriesMtx.RUnlock()

	for _, f := range operatorFactories {
		op, ok, err := f.ToOperator(dctx, id, node)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return op, true, nil
		}
	}
	return nil, false, nil
}

func operatorMaxDrivers(node physical.Node) (int, bool) {
	operatorFactoriesMtx.RLock()
	defer operatorFactoriesMtx.RUnlock()

	for _, f := range operatorFactories {
		if count, ok := f.MaxDrivers(node); ok {
			return count, true
		}
	}
	return 0, false
}
