package sync

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/JohanCodinha/issuesync/internal/telemetry"
)

// DefaultBatchSize bounds the number of remote writes in flight at once.
const DefaultBatchSize = 10

type batchConfig struct {
	label   string
	onBatch func(index, size int)
}

// BatchOption configures RunBatches.
type BatchOption func(*batchConfig)

// WithLabel names the batch run in logs and metrics.
func WithLabel(label string) BatchOption {
	return func(c *batchConfig) { c.label = label }
}

// OnBatch registers a callback invoked after each completed batch with the
// batch's index and size. It is for observation only.
func OnBatch(fn func(index, size int)) BatchOption {
	return func(c *batchConfig) { c.onBatch = fn }
}

// RunBatches applies fn to items in consecutive batches of at most size items.
// The calls of one batch run concurrently and the whole batch finishes before
// the next one starts. The first failure fails its batch, and no later batch
// is started. A non-positive size means DefaultBatchSize.
func RunBatches[T any](ctx context.Context, items []T, size int, fn func(context.Context, T) error, opts ...BatchOption) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	cfg := batchConfig{label: "batch"}
	for _, opt := range opts {
		opt(&cfg)
	}

	completed, err := telemetry.Meter("").Int64Counter("issuesync.batch.operations",
		metric.WithDescription("Operations applied in completed batches"))
	if err != nil {
		return fmt.Errorf("failed to create batch counter: %w", err)
	}
	attrs := metric.WithAttributes(attribute.String("batch.label", cfg.label))

	for index, start := 0, 0; start < len(items); index, start = index+1, start+size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range batch {
			g.Go(func() error {
				return fn(gctx, item)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("%s %d failed: %w", cfg.label, index, err)
		}

		completed.Add(ctx, int64(len(batch)), attrs)
		log.Info("completed %s %d: %d operations", cfg.label, index, len(batch))
		if cfg.onBatch != nil {
			cfg.onBatch(index, len(batch))
		}
	}

	return nil
}
