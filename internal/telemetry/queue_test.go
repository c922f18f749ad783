package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueBuffersUntilWatched(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 10; i++ {
		require.True(t, q.Push(GeoFix{Lat: float64(i)}))
	}
	assert.Equal(t, 10, q.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixes, err := q.Watch(ctx)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		select {
		case f := <-fixes:
			assert.Equal(t, float64(i), f.Lat)
		case <-time.After(time.Second):
			t.Fatalf("timeout reading fix %d", i)
		}
	}
}

func TestQueueCloseDrainsThenCloses(t *testing.T) {
	q := NewQueue()
	q.Push(GeoFix{Lat: 1})
	q.Push(GeoFix{Lat: 2})
	q.Close()
	assert.False(t, q.Push(GeoFix{Lat: 3}))

	fixes, err := q.Watch(context.Background())
	require.NoError(t, err)

	var got []float64
	for f := range fixes {
		got = append(got, f.Lat)
	}
	assert.Equal(t, []float64{1, 2}, got)
}

func TestQueueWatchOnce(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := q.Watch(ctx)
	require.NoError(t, err)
	_, err = q.Watch(ctx)
	assert.Error(t, err)
}
