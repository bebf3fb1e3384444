package terrain

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"testing"

	"github.com/annel0/terragen/internal/erosion"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/noise"
	"github.com/annel0/terragen/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallRequest() Request {
	return Request{
		Width:   16,
		Height:  12,
		Depth:   50,
		Seed:    99,
		Noise:   noise.DefaultParameters(),
		Erosion: erosion.Parameters{Iterations: 200, ErosionStrength: 0.02, DepositionStrength: 0.01, MinSlope: 0.01},
	}
}

type recordingBus struct {
	mu     sync.Mutex
	events []*eventbus.Envelope
}

func (b *recordingBus) Publish(ctx context.Context, ev *eventbus.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, f eventbus.Filter, h eventbus.Handler) (eventbus.Subscription, error) {
	return nil, nil
}

func (b *recordingBus) Metrics() eventbus.Stats { return eventbus.Stats{} }
func (b *recordingBus) Close() error            { return nil }

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.EventType)
	}
	return out
}

func TestServiceCreateStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryTerrainRepo()
	bus := &recordingBus{}
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	svc := NewService(repo, WithEventBus(bus), WithMetrics(metrics))

	rec, err := svc.Create(ctx, smallRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(99), rec.Seed)
	assert.Equal(t, noise.SourcePerlin, rec.Source)
	assert.Equal(t, 200, rec.ErosionStats.Iterations)

	grid, err := svc.Heights(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, grid.Width())
	assert.Equal(t, 12, grid.Height())

	// Тот же сид даёт ту же сетку
	same, err := GenerateTerrainHeights(16, 12, rec.Noise, rec.Erosion,
		WithSeed(rec.Seed), WithSource(noise.NewPerlinSource(rec.Seed)))
	require.NoError(t, err)
	assert.True(t, grid.Equal(same))

	h, err := svc.HeightAt(ctx, rec.ID, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, grid.At(3, 4), h)

	_, err = svc.HeightAt(ctx, rec.ID, 16, 0)
	assert.ErrorIs(t, err, heightmap.ErrOutOfRange)
	assert.True(t, IsInvalid(err))

	require.NoError(t, svc.Delete(ctx, rec.ID))
	_, err = svc.Get(ctx, rec.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(svc.Delete(ctx, rec.ID)))

	assert.Equal(t, []string{eventbus.TerrainGenerated, eventbus.TerrainDeleted}, bus.types())

	var payload eventbus.TerrainGeneratedEvent
	require.NoError(t, bus.events[0].Decode(&payload))
	assert.Equal(t, rec.ID, payload.ID)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["terragen_generations_total"])
	assert.True(t, names["terragen_generation_duration_seconds"])
}

func TestServiceCreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryTerrainRepo()
	svc := NewService(repo, WithMaxCells(100))

	req := smallRequest()
	_, err := svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidDimension, "16x12 больше лимита 100")

	req = smallRequest()
	req.Width, req.Height = 5, 5
	req.Source = "voronoi"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	req = smallRequest()
	req.Width, req.Height = 5, 5
	req.Noise.Octaves = 0
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	req = smallRequest()
	req.Width, req.Height = 0, 5
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	// width*height переполняет int и оборачивается в 0
	side := 1 << (strconv.IntSize / 2)
	req = smallRequest()
	req.Width, req.Height = side, side
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	unlimited := NewService(repo, WithMaxCells(0))
	_, err = unlimited.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidDimension, "без лимита сервиса размер проверяет генератор")
	assert.True(t, IsInvalid(err))

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list, "при ошибке ничего не сохраняется")
}

func TestServiceCreateRandom(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storage.NewMemoryTerrainRepo(), WithRandomSource(rand.New(rand.NewSource(4))))

	base := smallRequest()
	base.Source = noise.SourceSimplex
	rec, err := svc.CreateRandom(ctx, base)
	require.NoError(t, err)

	assert.Equal(t, noise.SourceSimplex, rec.Source)
	assert.Equal(t, base.Erosion, rec.Erosion)
	assert.Equal(t, 0.1, rec.Noise.Persistence)
	assert.GreaterOrEqual(t, rec.Depth, 10.0)
	assert.Less(t, rec.Depth, 100.0)
}

func TestServiceCreateWithoutSeed(t *testing.T) {
	svc := NewService(storage.NewMemoryTerrainRepo())
	req := smallRequest()
	req.Seed = 0

	rec, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.NotZero(t, rec.Seed, "сохраняется фактический сид")
}
