package executor

import (
	"context"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestPlanner() *LocalPlanner {
	return NewLocalPlanner(log.NewNopLogger(), prometheus.NewRegistry())
}

func newTestTask() *Task {
	return NewTask("test-task", log.NewNopLogger())
}

// int64Schema builds a schema of nullable int64 columns.
func int64Schema(names ...string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

func record(t *testing.T, schema *arrow.Schema, rows [][]any) arrow.Record {
	t.Helper()
	batch, err := rowsToRecord(schema, rows)
	require.NoError(t, err)
	return batch
}

func recordRows(t *testing.T, batch arrow.Record) [][]any {
	t.Helper()
	rows, err := batchRows(batch)
	require.NoError(t, err)
	return rows
}

// rowCollector gathers the rows delivered to the output pipeline's sink.
type rowCollector struct {
	mtx  sync.Mutex
	rows [][]any
	done bool
}

func (c *rowCollector) factory() Consumer { return c.consume }

func (c *rowCollector) consume(_ context.Context, batch arrow.Record) (ContinueFuture, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if batch == nil {
		c.done = true
		return nil, nil
	}
	rows, err := batchRows(batch)
	if err != nil {
		return nil, err
	}
	c.rows = append(c.rows, rows...)
	return nil, nil
}

func (c *rowCollector) collected() [][]any {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.rows
}

// runFactories creates counts[i] drivers for factory i, in factory order, and
// runs them all to completion.
func runFactories(t *testing.T, task *Task, factories []*DriverFactory, counts []int) {
	t.Helper()
	require.Len(t, counts, len(factories))

	numDrivers := func(pipelineID int) int { return counts[pipelineID] }

	var drivers []*Driver
	for pipelineID, factory := range factories {
		for driverID := 0; driverID < counts[pipelineID]; driverID++ {
			dctx := &DriverCtx{Task: task, PipelineID: pipelineID, DriverID: driverID}
			driver, err := factory.CreateDriver(dctx, nil, numDrivers)
			require.NoError(t, err)
			drivers = append(drivers, driver)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(drivers))
	for _, driver := range drivers {
		wg.Add(1)
		go func(d *Driver) {
			defer wg.Done()
			errs <- d.Run(context.Background())
		}(driver)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}
