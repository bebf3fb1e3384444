package eventbus

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeRoundTrip(t *testing.T) {
	ev, err := NewEnvelope(TerrainGenerated, "test", TerrainGeneratedEvent{ID: "abc", Width: 4, Height: 4, Seed: 9})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Version)
	assert.Equal(t, TerrainGenerated, ev.EventType)

	var payload TerrainGeneratedEvent
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, "abc", payload.ID)
	assert.Equal(t, int64(9), payload.Seed)
}

func TestMemoryBusDeliversFiltered(t *testing.T) {
	bus := NewMemoryBus(8)

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(1)

	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{TerrainDeleted}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType)
		mu.Unlock()
		wg.Done()
	})
	require.NoError(t, err)

	gen, _ := NewEnvelope(TerrainGenerated, "test", TerrainGeneratedEvent{ID: "1"})
	del, _ := NewEnvelope(TerrainDeleted, "test", TerrainDeletedEvent{ID: "1"})
	require.NoError(t, bus.Publish(context.Background(), gen))
	require.NoError(t, bus.Publish(context.Background(), del))

	wg.Wait()
	require.NoError(t, bus.Close())

	assert.Equal(t, []string{TerrainDeleted}, got)
	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Consumed)

	assert.ErrorIs(t, bus.Publish(context.Background(), gen), ErrClosed)
	assert.NoError(t, bus.Close())
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	me, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	ev, _ := NewEnvelope(TerrainGenerated, "test", TerrainGeneratedEvent{})
	require.NoError(t, bus.Publish(context.Background(), ev))
	me.Collect()
	me.Collect()
	assert.Equal(t, 1.0, counterValue(t, reg, "eventbus_messages_published_total"))

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "повторная регистрация в том же реестре")
}

func TestNATSBus(t *testing.T) {
	url := os.Getenv("TERRAGEN_TEST_NATS")
	if url == "" {
		t.Skip("TERRAGEN_TEST_NATS не задан")
	}

	bus, err := NewNATSBus(url, "terragen_test")
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *Envelope, 1)
	_, err = bus.Subscribe(ctx, Filter{Types: []string{TerrainGenerated}}, func(ctx context.Context, ev *Envelope) {
		received <- ev
	})
	require.NoError(t, err)
	require.NoError(t, bus.Flush())

	ev, _ := NewEnvelope(TerrainGenerated, "test", TerrainGeneratedEvent{ID: "nats"})
	require.NoError(t, bus.Publish(ctx, ev))

	select {
	case got := <-received:
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("событие не доставлено")
	}
	assert.Equal(t, "terragen_test.terrain.generated", bus.Subject(TerrainGenerated))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("метрика %s не найдена", name)
	return 0
}
