package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/GuChangyang/presto/pkg/engine/internal/errors"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// DriverCtx identifies one driver within an executing task.
type DriverCtx struct {
	Task *Task
	// PipelineID is the index of the driver's pipeline in planning order.
	PipelineID int
	// DriverID is the 0-based index of the driver within its pipeline.
	DriverID int
}

// DriverFactory describes one pipeline of an executable plan: the linear
// chain of plan nodes it covers and how many drivers may run it concurrently.
// Factories are produced by [LocalPlanner.Plan]; CreateDriver instantiates one
// driver at a time.
type DriverFactory struct {
	// Nodes holds the pipeline's plan nodes in source-to-sink order.
	Nodes []physical.Node
	// MaxDrivers is the pipeline's driver-count ceiling.
	MaxDrivers int
	// InputDriver is set if the pipeline starts at a leaf of the plan.
	InputDriver bool
	// OutputDriver is set if the pipeline produces the plan's results.
	OutputDriver bool

	consumerSupplier OperatorSupplier
	metrics          *plannerMetrics
}

// CreateDriver instantiates one driver of the pipeline. The exchange client
// is only consulted for pipelines sourced by Exchange or MergeExchange nodes;
// numDrivers reports the planned driver count of any pipeline of the task and
// sizes the merge sources of LocalMerge operators.
func (f *DriverFactory) CreateDriver(dctx *DriverCtx, client ExchangeClient, numDrivers func(pipelineID int) int) (*Driver, error) {
	var operators []Operator

	for i := 0; i < len(f.Nodes); i++ {
		id := len(operators)
		var (
			op  Operator
			err error
		)

		switch n := f.Nodes[i].(type) {
		case *physical.TableScan:
			op = newTableScan(id, dctx, n)

		case *physical.Values:
			op = newValues(id, n)

		case *physical.Filter:
			// Fuse an adjacent projection into a single operator.
			if i+1 < len(f.Nodes) {
				if project, ok := f.Nodes[i+1].(*physical.Projection); ok {
					op, err = newFilterProject(id, n, project)
					if f.metrics != nil {
						f.metrics.operatorsFused.Inc()
					}
					i++
					break
				}
			}
			op, err = newFilterProject(id, n, nil)

		case *physical.Projection:
			op, err = newFilterProject(id, nil, n)

		case *physical.Aggregation:
			if n.Streaming {
				op, err = newStreamingAggregation(id, n)
			} else {
				op, err = newHashAggregation(id, n)
			}

		case *physical.TopN:
			op, err = newTopN(id, n)

		case *physical.Limit:
			op = newLimit(id, n)

		case *physical.OrderBy:
			op, err = newOrderBy(id, n)

		case *physical.HashJoin:
			op, err = newHashProbe(id, dctx, n)

		case *physical.NestedLoopJoin:
			op = newNestedLoopJoinProbe(id, dctx, n)

		case *physical.MergeJoin:
			dctx.Task.CreateMergeJoinSource(n.ID(), n.Right.Schema())
			op, err = newMergeJoin(id, dctx, n)

		case *physical.LocalMerge:
			numSources := numDrivers(dctx.PipelineID + 1)
			if err := dctx.Task.CreateLocalMergeSources(numSources, n.Schema()); err != nil {
				return nil, err
			}
			op, err = newLocalMerge(id, dctx, n, numSources)

		case *physical.LocalPartition:
			op = newLocalExchangeSource(id, dctx, n)

		case *physical.Exchange:
			if client == nil {
				return nil, fmt.Errorf("%w: exchange node %s needs an exchange client", errors.ErrInvalidPlan, n.ID())
			}
			op = newExchange(id, n, client)

		case *physical.MergeExchange:
			if client == nil {
				return nil, fmt.Errorf("%w: merge exchange node %s needs an exchange client", errors.ErrInvalidPlan, n.ID())
			}
			op, err = newMergeExchange(id, n, client)

		case *physical.PartitionedOutput:
			op = newPartitionedOutput(id, dctx, n)

		case *physical.TableWrite:
			op, err = newTableWriter(id, n)

		case *physical.Unnest:
			op, err = newUnnest(id, n)

		case *physical.EnforceSingleRow:
			op = newEnforceSingleRow(id, n)

		case *physical.AssignUniqueID:
			op = newAssignUniqueID(id, dctx, n)

		default:
			var ok bool
			op, ok, err = operatorFromPlanNode(dctx, id, f.Nodes[i])
			if err == nil && !ok {
				err = fmt.Errorf("%w: %s (%s)", errors.ErrUnsupportedNode, f.Nodes[i].ID(), f.Nodes[i].Type())
			}
		}
		if err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}

	if f.consumerSupplier != nil {
		sink, err := f.consumerSupplier(len(operators), dctx)
		if err != nil {
			return nil, err
		}
		operators = append(operators, sink)
	}

	if f.metrics != nil {
		f.metrics.driversCreated.Inc()
	}

	return &Driver{
		ID:        ulid.Make(),
		dctx:      dctx,
		operators: operators,
		// Without a consumer the root consumes its own output; whatever the
		// terminal operator still emits, such as a table writer's row-count
		// batch, is dropped.
		discardOutput: f.consumerSupplier == nil,
	}, nil
}

// Driver runs one instance of a pipeline, pushing batches from its source
// operator through to its sink.
type Driver struct {
	ID ulid.ULID

	dctx          *DriverCtx
	operators     []Operator
	discardOutput bool
}

// Operators returns the driver's operators in source-to-sink order.
func (d *Driver) Operators() []Operator { return d.operators }

// Run executes the pipeline until its sink has finished, the context is
// cancelled, or an operator fails. Run blocks on cross-pipeline hand-offs
// through ContinueFutures and is meant to be called in its own goroutine.
func (d *Driver) Run(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "Driver.Run", trace.WithAttributes(
		attribute.String("driver", d.ID.String()),
		attribute.Int("pipeline", d.dctx.PipelineID),
	))
	defer span.End()

	defer func() {
		if closeErr := d.close(); err == nil {
			err = closeErr
		}
	}()

	ops := d.operators
	noMoreInput := make([]bool, len(ops))

	for {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		progressed := false
		for i := 0; i < len(ops); i++ {
			op := ops[i]

			// Drain the operator's ready output into its successor.
			for {
				batch, err := op.GetOutput(ctx)
				if err != nil {
					return err
				}
				if batch == nil {
					break
				}
				if i == len(ops)-1 {
					if !d.discardOutput {
						return fmt.Errorf("sink operator %d (plan node %s) produced output", op.OperatorID(), op.PlanNodeID())
					}
					progressed = true
					continue
				}
				future, err := ops[i+1].AddInput(ctx, batch)
				if err != nil {
					return err
				}
				if future != nil {
					if err := future.wait(ctx); err != nil {
						return err
					}
				}
				progressed = true
			}

			if op.Finished() && i+1 < len(ops) && !noMoreInput[i+1] {
				ops[i+1].NoMoreInput()
				noMoreInput[i+1] = true
				progressed = true
			}
		}

		last := ops[len(ops)-1]
		if last.Finished() {
			// Sinks report deferred failures through GetOutput.
			_, err := last.GetOutput(ctx)
			return err
		}
		if !progressed {
			return fmt.Errorf("driver %s stalled in pipeline %d", d.ID, d.dctx.PipelineID)
		}
	}
}

func (d *Driver) close() error {
	var first error
	for _, op := range d.operators {
		if err := op.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// sliceBatch is a Split serving a fixed list of batches, convenient for tests
// and for plans built over in-memory data.
type sliceBatch struct {
	batches []arrow.Record
}

// NewSliceSplit returns a Split that serves the given batches in order.
func NewSliceSplit(batches ...arrow.Record) Split {
	return &sliceBatch{batches: batches}
}

func (s *sliceBatch) Next(context.Context) (arrow.Record, error) {
	if len(s.batches) == 0 {
		return nil, EOF
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *sliceBatch) Close() error { return nil }
