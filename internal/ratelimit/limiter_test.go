package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformLimiter_Wait(t *testing.T) {
	pl := NewPlatformLimiter(PlatformRates{"bigquery": 100, "athena": 100})

	// Should not block at high rate.
	err := pl.Wait(context.Background(), "bigquery")
	require.NoError(t, err)
}

func TestPlatformLimiter_UnknownPlatform(t *testing.T) {
	pl := NewPlatformLimiter(DefaultPlatformRates())

	// Unknown platform should pass through.
	err := pl.Wait(context.Background(), "duckdb")
	assert.NoError(t, err)
}

func TestPlatformLimiter_CancelledContext(t *testing.T) {
	// Create a very restrictive limiter.
	pl := NewPlatformLimiter(PlatformRates{"athena": 0.001})

	// Consume the burst.
	require.NoError(t, pl.Wait(context.Background(), "athena"))

	// Next call with cancelled context should error.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pl.Wait(ctx, "athena")
	assert.Error(t, err)
}

func TestPlatformLimiter_SetRate(t *testing.T) {
	pl := NewPlatformLimiter(PlatformRates{"athena": 0.001})
	require.NoError(t, pl.Wait(context.Background(), "athena"))

	// Removing the rate lifts the limit entirely.
	pl.SetRate("athena", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, pl.Wait(ctx, "athena"))

	pl.SetRate("postgres", 1000)
	assert.NoError(t, pl.Wait(context.Background(), "postgres"))
}
