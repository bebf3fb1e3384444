package main

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/terragen/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"a", "b"}, parseStringList(" a, ,b "))
}

func TestTailEventsStopsAtLimit(t *testing.T) {
	bus := eventbus.NewMemoryBus(8)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan int, 1)
	go func() {
		n, err := tailEvents(ctx, bus, eventbus.Filter{Types: []string{eventbus.TerrainGenerated}}, 2)
		assert.NoError(t, err)
		done <- n
	}()

	// Подписка создаётся асинхронно: публикуем, пока не получим два события
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case n := <-done:
			assert.Equal(t, 2, n)
			return
		case <-ticker.C:
			ev, err := eventbus.NewEnvelope(eventbus.TerrainGenerated, "test", eventbus.TerrainGeneratedEvent{ID: "x"})
			require.NoError(t, err)
			require.NoError(t, bus.Publish(ctx, ev))
		case <-ctx.Done():
			t.Fatal("tailEvents не завершился")
		}
	}
}
