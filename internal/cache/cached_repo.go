package cache

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/storage"
)

const gridKeyPrefix = "terragen:heights:"

// CachedTerrainRepo оборачивает TerrainRepo горячим кешем сеток.
// Описания читаются напрямую из хранилища, сетки сначала ищутся в кеше.
// Ошибки кеша не ломают запрос: хранилище остаётся источником истины.
type CachedTerrainRepo struct {
	storage.TerrainRepo
	cache CacheRepo
	ttl   time.Duration
}

// NewCachedTerrainRepo создает обёртку над repo
func NewCachedTerrainRepo(repo storage.TerrainRepo, cache CacheRepo, ttl time.Duration) *CachedTerrainRepo {
	return &CachedTerrainRepo{TerrainRepo: repo, cache: cache, ttl: ttl}
}

// Save сохраняет в хранилище и прогревает кеш
func (c *CachedTerrainRepo) Save(ctx context.Context, rec *storage.Record, grid *heightmap.Grid) error {
	if err := c.TerrainRepo.Save(ctx, rec, grid); err != nil {
		return err
	}
	c.put(ctx, rec.ID, grid)
	return nil
}

// LoadGrid читает сетку из кеша или из хранилища
func (c *CachedTerrainRepo) LoadGrid(ctx context.Context, id string) (*heightmap.Grid, error) {
	data, err := c.cache.Get(ctx, gridKeyPrefix+id)
	if err == nil {
		grid := &heightmap.Grid{}
		if err := grid.UnmarshalBinary(data); err == nil {
			return grid, nil
		}
		logging.Warn("Повреждённая сетка в кеше %s, читаем из хранилища", id)
	} else if !IsCacheMiss(err) {
		logging.Warn("Ошибка кеша для %s: %v", id, err)
	}

	grid, err := c.TerrainRepo.LoadGrid(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, id, grid)
	return grid, nil
}

// Delete инвалидирует кеш и удаляет из хранилища
func (c *CachedTerrainRepo) Delete(ctx context.Context, id string) error {
	if err := c.cache.Delete(ctx, gridKeyPrefix+id); err != nil {
		logging.Warn("Не удалось инвалидировать кеш для %s: %v", id, err)
	}
	return c.TerrainRepo.Delete(ctx, id)
}

// Close закрывает кеш и хранилище
func (c *CachedTerrainRepo) Close() error {
	if err := c.cache.Close(); err != nil {
		logging.Warn("Ошибка закрытия кеша: %v", err)
	}
	return c.TerrainRepo.Close()
}

// Metrics возвращает метрики кеша
func (c *CachedTerrainRepo) Metrics() *CacheMetrics {
	return c.cache.GetMetrics()
}

func (c *CachedTerrainRepo) put(ctx context.Context, id string, grid *heightmap.Grid) {
	data, err := grid.MarshalBinary()
	if err != nil {
		logging.Warn("Не удалось закодировать сетку %s: %v", id, err)
		return
	}
	err = c.cache.Set(ctx, gridKeyPrefix+id, data, c.ttl)
	switch {
	case err == nil:
	case errors.Is(err, ErrValueTooLarge):
		logging.Debug("Сетка %s не кешируется: %v", id, err)
	default:
		logging.Warn("Не удалось записать сетку %s в кеш: %v", id, err)
	}
}
