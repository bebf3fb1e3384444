package eventbus

import "time"

// Типы событий генератора
const (
	TerrainGenerated = "terrain.generated"
	TerrainDeleted   = "terrain.deleted"
)

// TerrainGeneratedEvent публикуется после сохранения нового ландшафта.
type TerrainGeneratedEvent struct {
	ID         string        `json:"id"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Seed       int64         `json:"seed"`
	Source     string        `json:"source"`
	Transfers  int           `json:"transfers"`
	MinHeight  float64       `json:"min_height"`
	MaxHeight  float64       `json:"max_height"`
	Duration   time.Duration `json:"duration_ns"`
}

// TerrainDeletedEvent публикуется после удаления ландшафта.
type TerrainDeletedEvent struct {
	ID string `json:"id"`
}
