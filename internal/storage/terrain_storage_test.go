package storage

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/terragen/internal/erosion"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *TerrainStorage {
	t.Helper()

	// Инициализируем хранилище во временной директории
	storage, err := NewTerrainStorage(t.TempDir())
	require.NoError(t, err, "Не удалось создать хранилище")
	t.Cleanup(func() { storage.Close() })
	return storage
}

func testGrid(t *testing.T) *heightmap.Grid {
	t.Helper()
	grid, err := heightmap.FromValues(3, 2, []float64{0.1, 0.2, 0.3, -0.05, 1.2, 0.5})
	require.NoError(t, err)
	return grid
}

func testRecord() *Record {
	return &Record{
		Width:   3,
		Height:  2,
		Depth:   50,
		Seed:    42,
		Source:  noise.SourcePerlin,
		Noise:   noise.DefaultParameters(),
		Erosion: erosion.DefaultParameters(),
	}
}

// repoContract прогоняет общие проверки для любой реализации TerrainRepo
func repoContract(t *testing.T, repo TerrainRepo) {
	ctx := context.Background()
	grid := testGrid(t)

	rec := testRecord()
	require.NoError(t, repo.Save(ctx, rec, grid))
	require.NotEmpty(t, rec.ID, "ID должен быть назначен при сохранении")
	assert.False(t, rec.CreatedAt.IsZero())

	loaded, err := repo.LoadRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rec.Noise, loaded.Noise)
	assert.Equal(t, rec.Erosion, loaded.Erosion)
	assert.Equal(t, int64(42), loaded.Seed)

	loadedGrid, err := repo.LoadGrid(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, grid.Equal(loadedGrid), "сетка должна восстанавливаться бит в бит")

	// Второй ландшафт позже первого
	second := testRecord()
	second.CreatedAt = rec.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, second, grid))

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "новые первыми")

	list, err = repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	_, err = repo.LoadRecord(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.LoadGrid(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.LoadRecord(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTerrainStorageContract(t *testing.T) {
	repoContract(t, setupTestStorage(t))
}

func TestMemoryTerrainRepoContract(t *testing.T) {
	repoContract(t, NewMemoryTerrainRepo())
}

func TestMemoryRepoIsolatesGrid(t *testing.T) {
	repo := NewMemoryTerrainRepo()
	ctx := context.Background()
	grid := testGrid(t)
	rec := testRecord()
	require.NoError(t, repo.Save(ctx, rec, grid))

	grid.Set(0, 0, 99)
	loaded, err := repo.LoadGrid(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, loaded.At(0, 0))
}

func TestTerrainStoragePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	storage, err := NewTerrainStorage(dir)
	require.NoError(t, err)
	rec := testRecord()
	require.NoError(t, storage.Save(ctx, rec, testGrid(t)))
	require.NoError(t, storage.Close())
	require.NoError(t, storage.Close(), "повторное закрытие безопасно")

	_, err = storage.LoadRecord(ctx, rec.ID)
	assert.Error(t, err, "закрытое хранилище не отвечает")

	reopened, err := NewTerrainStorage(dir)
	require.NoError(t, err)
	defer reopened.Close()

	grid, err := reopened.LoadGrid(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.2, grid.At(1, 1))
}

func TestSaveRejectsNil(t *testing.T) {
	storage := setupTestStorage(t)
	assert.Error(t, storage.Save(context.Background(), nil, testGrid(t)))
	assert.Error(t, NewMemoryTerrainRepo().Save(context.Background(), testRecord(), nil))
}

func TestSaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, setupTestStorage(t).Save(ctx, testRecord(), testGrid(t)), context.Canceled)
	assert.ErrorIs(t, NewMemoryTerrainRepo().Save(ctx, testRecord(), testGrid(t)), context.Canceled)
}
