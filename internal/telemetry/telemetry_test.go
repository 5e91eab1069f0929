package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	require.NoError(t, Init(context.Background(), "issuesync", "test", Options{}))
	defer Shutdown(context.Background())

	_, span := Tracer("").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid(), "disabled telemetry should produce no-op spans")

	counter, err := Meter("").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}

func TestInitEnabled(t *testing.T) {
	require.NoError(t, Init(context.Background(), "issuesync", "test", Options{Enabled: true}))

	_, span := Tracer("test").Start(context.Background(), "real")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, Shutdown(context.Background()))
	// a second shutdown has nothing left to flush
	assert.NoError(t, Shutdown(context.Background()))

	require.NoError(t, Init(context.Background(), "issuesync", "test", Options{}))
}
