package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// callbackSink terminates a pipeline by forwarding every batch to a consumer
// callback. On end of input the consumer is invoked once with a nil batch.
type callbackSink struct {
	baseOperator

	consumer Consumer
	finished bool
	err      error
}

func newCallbackSink(id int, nodeID string, consumer Consumer) *callbackSink {
	return &callbackSink{
		baseOperator: baseOperator{id: id, nodeID: nodeID},
		consumer:     consumer,
	}
}

func (o *callbackSink) AddInput(ctx context.Context, batch arrow.Record) (ContinueFuture, error) {
	return o.consumer(ctx, batch)
}

func (o *callbackSink) NoMoreInput() {
	// The nil batch tells the consumer that the pipeline is exhausted.
	_, o.err = o.consumer(context.Background(), nil)
	o.finished = true
}

func (o *callbackSink) GetOutput(context.Context) (arrow.Record, error) { return nil, o.err }

func (o *callbackSink) Finished() bool { return o.finished }

func (o *callbackSink) Close() error { return nil }

// errNoInputExpected reports a batch pushed into a source operator.
func errNoInputExpected(op Operator) error {
	return fmt.Errorf("operator %d (plan node %s) does not accept input", op.OperatorID(), op.PlanNodeID())
}
