package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/terragen/internal/heightmap"
)

// MemoryTerrainRepo реализует TerrainRepo в памяти.
// Используется, когда каталог данных не задан, и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryTerrainRepo struct {
	mu      sync.RWMutex
	records map[string]Record
	grids   map[string]*heightmap.Grid
}

// NewMemoryTerrainRepo создает новый репозиторий в памяти
func NewMemoryTerrainRepo() *MemoryTerrainRepo {
	return &MemoryTerrainRepo{
		records: make(map[string]Record),
		grids:   make(map[string]*heightmap.Grid),
	}
}

// Save сохраняет копии описания и сетки
func (r *MemoryTerrainRepo) Save(ctx context.Context, rec *Record, grid *heightmap.Grid) error {
	if rec == nil || grid == nil {
		return fmt.Errorf("пустой ландшафт")
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.ID] = *rec
	r.grids[rec.ID] = grid.Clone()
	return nil
}

// LoadRecord возвращает копию описания
func (r *MemoryTerrainRepo) LoadRecord(ctx context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return &rec, nil
}

// LoadGrid возвращает копию сетки
func (r *MemoryTerrainRepo) LoadGrid(ctx context.Context, id string) (*heightmap.Grid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grid, ok := r.grids[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return grid.Clone(), nil
}

// Delete удаляет ландшафт
func (r *MemoryTerrainRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
	delete(r.grids, id)
	return nil
}

// List возвращает описания, новые первыми
func (r *MemoryTerrainRepo) List(ctx context.Context, limit int) ([]*Record, error) {
	r.mu.RLock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		rec := rec
		out = append(out, &rec)
	}
	r.mu.RUnlock()

	return limitRecords(sortRecords(out), limit), nil
}

// Close ничего не делает
func (r *MemoryTerrainRepo) Close() error {
	return nil
}

func sortRecords(recs []*Record) []*Record {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs
}

func limitRecords(recs []*Record, limit int) []*Record {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
