// Package executor turns physical plans into executable pipelines and runs
// them.
//
// A plan is decomposed by [LocalPlanner.Plan] into a list of [DriverFactory],
// one per pipeline. Each factory instantiates up to MaxDrivers [Driver]
// instances, and every driver is a linear chain of [Operator] values pushing
// batches from a source to a sink. Pipelines hand batches to each other
// through coordination primitives owned by the [Task]: bounded queues, local
// exchanges and join bridges, all looked up by plan node identity.
package executor

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("pkg/engine/executor")
