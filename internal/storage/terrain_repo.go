package storage

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/terragen/internal/erosion"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/noise"
	"github.com/google/uuid"
)

// ErrNotFound возвращается, если ландшафт с таким ID не сохранён
var ErrNotFound = errors.New("terrain not found")

// Record описывает сохранённый прогон генерации без самой сетки
type Record struct {
	ID           string             `json:"id"`
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	Depth        float64            `json:"depth"`
	Seed         int64              `json:"seed"`
	Source       string             `json:"source"`
	Noise        noise.Parameters   `json:"noise"`
	Erosion      erosion.Parameters `json:"erosion"`
	ErosionStats erosion.Stats      `json:"erosion_stats"`
	HeightStats  heightmap.Stats    `json:"height_stats"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewID генерирует идентификатор ландшафта
func NewID() string {
	return uuid.NewString()
}

// TerrainRepo определяет интерфейс хранилища сгенерированных ландшафтов.
// Сетка и описание сохраняются вместе, но читаются раздельно: описание
// нужно чаще, а сетка может весить мегабайты.
type TerrainRepo interface {
	// Save сохраняет описание и сетку. Пустой rec.ID заполняется NewID().
	Save(ctx context.Context, rec *Record, grid *heightmap.Grid) error

	// LoadRecord загружает описание ландшафта. ErrNotFound, если ID неизвестен.
	LoadRecord(ctx context.Context, id string) (*Record, error)

	// LoadGrid загружает сетку высот. ErrNotFound, если ID неизвестен.
	LoadGrid(ctx context.Context, id string) (*heightmap.Grid, error)

	// Delete удаляет ландшафт. Удаление неизвестного ID не ошибка.
	Delete(ctx context.Context, id string) error

	// List возвращает до limit описаний, новые первыми (limit <= 0 значит все)
	List(ctx context.Context, limit int) ([]*Record, error)

	// Close закрывает хранилище
	Close() error
}
