package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatchQueue(t *testing.T) {
	schema := int64Schema("x")
	batch := record(t, schema, [][]any{{int64(1)}})

	t.Run("enqueue below capacity completes immediately", func(t *testing.T) {
		q := NewBatchQueue(2, schema)
		future, err := q.Enqueue(batch)
		require.NoError(t, err)
		require.Nil(t, future)
	})

	t.Run("enqueue at capacity returns a future", func(t *testing.T) {
		q := NewBatchQueue(1, schema)
		future, err := q.Enqueue(batch)
		require.NoError(t, err)
		require.NotNil(t, future)

		select {
		case <-future:
			t.Fatal("future resolved before space was freed")
		default:
		}

		_, err = q.Dequeue(context.Background())
		require.NoError(t, err)

		select {
		case <-future:
		case <-time.After(time.Second):
			t.Fatal("future did not resolve after dequeue")
		}
	})

	t.Run("dequeue blocks until data arrives", func(t *testing.T) {
		q := NewBatchQueue(1, schema)
		got := make(chan error, 1)
		go func() {
			_, err := q.Dequeue(context.Background())
			got <- err
		}()

		time.Sleep(10 * time.Millisecond)
		_, err := q.Enqueue(batch)
		require.NoError(t, err)
		require.NoError(t, <-got)
	})

	t.Run("finish drains remaining batches then EOF", func(t *testing.T) {
		q := NewBatchQueue(2, schema)
		_, err := q.Enqueue(batch)
		require.NoError(t, err)
		q.Finish()

		_, err = q.Dequeue(context.Background())
		require.NoError(t, err)
		_, err = q.Dequeue(context.Background())
		require.ErrorIs(t, err, EOF)
	})

	t.Run("close wakes a blocked consumer", func(t *testing.T) {
		q := NewBatchQueue(1, schema)
		got := make(chan error, 1)
		go func() {
			_, err := q.Dequeue(context.Background())
			got <- err
		}()

		time.Sleep(10 * time.Millisecond)
		q.Close()
		require.ErrorIs(t, <-got, EOF)
	})

	t.Run("cancelled context unblocks dequeue", func(t *testing.T) {
		q := NewBatchQueue(1, schema)
		ctx, cancel := context.WithCancel(context.Background())
		got := make(chan error, 1)
		go func() {
			_, err := q.Dequeue(ctx)
			got <- err
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()
		require.ErrorIs(t, <-got, context.Canceled)
	})
}

func TestLocalExchange(t *testing.T) {
	schema := int64Schema("x")

	t.Run("rows with equal keys land in the same partition", func(t *testing.T) {
		x := NewLocalExchange(4, 8, schema)
		x.AddProducer()

		var rows [][]any
		for i := int64(0); i < 32; i++ {
			rows = append(rows, []any{i % 8})
		}
		_, err := x.Partition(record(t, schema, rows), "x")
		require.NoError(t, err)
		x.FinishProducer()

		partitionOf := map[int64]int{}
		var total int
		for p := 0; p < x.Partitions(); p++ {
			for {
				batch, err := x.Queue(p).Dequeue(context.Background())
				if err == EOF {
					break
				}
				require.NoError(t, err)
				for _, row := range recordRows(t, batch) {
					key := row[0].(int64)
					if prev, ok := partitionOf[key]; ok {
						require.Equal(t, prev, p)
					}
					partitionOf[key] = p
					total++
				}
			}
		}
		require.Equal(t, 32, total)
	})

	t.Run("queues finish once the last producer is done", func(t *testing.T) {
		x := NewLocalExchange(2, 8, schema)
		x.AddProducer()
		x.AddProducer()

		x.FinishProducer()
		got := make(chan error, 1)
		go func() {
			_, err := x.Queue(0).Dequeue(context.Background())
			got <- err
		}()

		select {
		case <-got:
			t.Fatal("queue finished before the last producer was done")
		case <-time.After(10 * time.Millisecond):
		}

		x.FinishProducer()
		require.ErrorIs(t, <-got, EOF)
	})
}
