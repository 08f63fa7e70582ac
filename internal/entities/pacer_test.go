package entities

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer(t *testing.T) {
	tests := []struct {
		every, requests, pauses int
	}{
		{10, 9, 0},
		{10, 10, 1},
		{10, 25, 2},
		{10, 30, 3},
		{0, 50, 0},
		{1, 3, 3},
	}
	for _, tt := range tests {
		var slept int
		p := NewPacer(tt.every, time.Millisecond, func(context.Context, time.Duration) error {
			slept++
			return nil
		})
		for i := 0; i < tt.requests; i++ {
			require.NoError(t, p.Observe(context.Background()))
		}
		assert.Equal(t, tt.pauses, p.Pauses(), "every=%d requests=%d", tt.every, tt.requests)
		assert.Equal(t, tt.pauses, slept)
		assert.Equal(t, tt.requests, p.Requests())
	}
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
