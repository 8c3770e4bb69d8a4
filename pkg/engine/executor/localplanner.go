package executor

import (
	"context"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/GuChangyang/presto/pkg/engine/internal/errors"
	"github.com/GuChangyang/presto/pkg/engine/planner/physical"
)

// MaxDriversUnbounded is the driver-count ceiling of pipelines that carry no
// parallelism constraint of their own.
const MaxDriversUnbounded = math.MaxInt32

// LocalPlanner decomposes a physical plan into pipelines, each described by a
// [DriverFactory]. The first factory always covers the pipeline producing the
// plan's results.
//
// Drivers must be instantiated in factory order: pipeline 0 first, so that
// operators reading cross-pipeline hand-offs register them on the task before
// the producing pipelines start.
type LocalPlanner struct {
	logger  log.Logger
	metrics *plannerMetrics
}

// NewLocalPlanner creates a planner registering its metrics on reg.
func NewLocalPlanner(logger log.Logger, reg prometheus.Registerer) *LocalPlanner {
	return &LocalPlanner{
		logger:  logger,
		metrics: newPlannerMetrics(reg),
	}
}

// Plan splits the plan rooted at root into pipelines. The consumer factory
// provides one consumer per driver of the output pipeline; the output
// pipeline's sink forwards result batches to it. A nil factory is allowed for
// roots that consume their own output, such as PartitionedOutput or
// TableWrite.
func (p *LocalPlanner) Plan(ctx context.Context, root physical.Node, consumerFactory ConsumerFactory) ([]*DriverFactory, error) {
	_, span := tracer.Start(ctx, "LocalPlanner.Plan", trace.WithAttributes(
		attribute.String("root", root.ID()),
	))
	defer span.End()

	var outputSupplier OperatorSupplier
	if consumerFactory != nil {
		outputSupplier = makeConsumerSinkSupplier(root.ID(), consumerFactory)
	}

	var factories []*DriverFactory
	if err := p.plan(root, nil, outputSupplier, &factories); err != nil {
		return nil, err
	}
	factories[0].OutputDriver = true

	for _, f := range factories {
		count, err := pipelineMaxDrivers(f.Nodes)
		if err != nil {
			return nil, err
		}
		f.MaxDrivers = count
		f.metrics = p.metrics
	}

	p.metrics.pipelinesPlanned.Add(float64(len(factories)))
	span.SetAttributes(attribute.Int("pipelines", len(factories)))
	level.Debug(p.logger).Log("msg", "decomposed plan into pipelines", "root", root.ID(), "pipelines", len(factories))
	return factories, nil
}

// plan recursively splits the subtree rooted at node into pipelines. A nil
// factory starts a new pipeline terminated by consumerSupplier. Nodes are
// appended after their in-pipeline sources, so factory.Nodes ends up in
// source-to-sink order.
func (p *LocalPlanner) plan(node physical.Node, factory *DriverFactory, consumerSupplier OperatorSupplier, factories *[]*DriverFactory) error {
	if factory == nil {
		factory = &DriverFactory{consumerSupplier: consumerSupplier}
		*factories = append(*factories, factory)
	}

	sources := node.Sources()
	if len(sources) == 0 {
		factory.InputDriver = true
	}
	for i, source := range sources {
		if mustStartNewPipeline(node, i) {
			supplier, err := makeConsumerSupplier(node)
			if err != nil {
				return err
			}
			if err := p.plan(source, nil, supplier, factories); err != nil {
				return err
			}
			continue
		}
		if err := p.plan(source, factory, consumerSupplier, factories); err != nil {
			return err
		}
	}

	factory.Nodes = append(factory.Nodes, node)
	return nil
}

// mustStartNewPipeline reports whether the source at sourceIdx of node runs in
// its own pipeline. Every source of a LocalMerge or LocalPartition does; for
// all other nodes only the first source stays in the parent pipeline.
func mustStartNewPipeline(node physical.Node, sourceIdx int) bool {
	switch node.(type) {
	case *physical.LocalMerge, *physical.LocalPartition:
		return true
	}
	return sourceIdx != 0
}

// makeConsumerSinkSupplier wraps the plan-level consumer factory into the
// sink supplier of the output pipeline.
func makeConsumerSinkSupplier(nodeID string, factory ConsumerFactory) OperatorSupplier {
	return func(id int, _ *DriverCtx) (Operator, error) {
		return newCallbackSink(id, nodeID, factory()), nil
	}
}

// makeConsumerSupplier returns the sink supplier for pipelines feeding the
// given parent node, or nil if batches flow to the parent within the same
// pipeline.
func makeConsumerSupplier(node physical.Node) (OperatorSupplier, error) {
	switch n := node.(type) {
	case *physical.LocalMerge:
		// Each producer driver enqueues into its own merge source, keyed by
		// driver id. The sources are created by the merge operator before the
		// producing pipelines start.
		return func(id int, dctx *DriverCtx) (Operator, error) {
			source, err := dctx.Task.LocalMergeSource(dctx.DriverID)
			if err != nil {
				return nil, err
			}
			return newCallbackSink(id, n.ID(), enqueueConsumer(source)), nil
		}, nil

	case *physical.LocalPartition:
		return func(id int, dctx *DriverCtx) (Operator, error) {
			return newLocalPartition(id, dctx, n), nil
		}, nil

	case *physical.HashJoin:
		return func(id int, dctx *DriverCtx) (Operator, error) {
			return newHashBuild(id, dctx, n)
		}, nil

	case *physical.NestedLoopJoin:
		return func(id int, dctx *DriverCtx) (Operator, error) {
			return newNestedLoopJoinBuild(id, dctx, n), nil
		}, nil

	case *physical.MergeJoin:
		return func(id int, dctx *DriverCtx) (Operator, error) {
			source := dctx.Task.CreateMergeJoinSource(n.ID(), n.Right.Schema())
			return newCallbackSink(id, n.ID(), enqueueConsumer(source)), nil
		}, nil
	}

	return nil, nil
}

// enqueueConsumer adapts a batch queue into a Consumer. A nil batch finishes
// the queue.
func enqueueConsumer(queue *BatchQueue) Consumer {
	return func(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
		if batch == nil {
			queue.Finish()
			return nil, nil
		}
		return queue.Enqueue(batch)
	}
}

// pipelineMaxDrivers computes the driver-count ceiling of one pipeline. Any
// node requiring single-threaded execution pins the whole pipeline to one
// driver; otherwise the smallest declared cap wins.
func pipelineMaxDrivers(nodes []physical.Node) (int, error) {
	count := MaxDriversUnbounded
	for _, node := range nodes {
		switch n := node.(type) {
		case *physical.Aggregation:
			// Final and single aggregations must see all rows of a group.
			if n.Step == physical.AggregationFinal || n.Step == physical.AggregationSingle {
				return 1, nil
			}

		case *physical.TopN:
			if !n.Partial {
				return 1, nil
			}

		case *physical.Limit:
			if !n.Partial {
				return 1, nil
			}

		case *physical.OrderBy:
			if !n.Partial {
				return 1, nil
			}

		case *physical.Values:
			if !n.Parallelizable {
				return 1, nil
			}

		case *physical.LocalMerge, *physical.MergeExchange:
			return 1, nil

		case *physical.TableWrite:
			if !n.Handle.SupportsMultiThreading() {
				return 1, nil
			}

		default:
			limit, ok := operatorMaxDrivers(node)
			if !ok {
				continue
			}
			if limit == 0 {
				return 0, fmt.Errorf("%w: node %s (%s) declares a driver cap of 0", errors.ErrInvalidPlan, node.ID(), node.Type())
			}
			if limit < count {
				count = limit
			}
		}
	}
	return count, nil
}
