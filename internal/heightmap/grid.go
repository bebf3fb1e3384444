package heightmap

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/terragen/internal/vec"
)

// MaxCells ограничивает width*height одной сетки (16384x16384, 2 ГиБ float64)
const MaxCells = 1 << 28

var (
	// ErrOutOfRange возвращается при обращении к ячейке за пределами сетки
	ErrOutOfRange = errors.New("coordinates out of grid bounds")
	// ErrInvalidSize возвращается для неположительного или слишком большого размера
	ErrInvalidSize = errors.New("invalid grid size")
)

// NeighborOffsets перечисляет 8-связное окружение ячейки в порядке обхода:
// столбцы слева направо (dx = -1..1), внутри столбца сверху вниз (dy = -1..1), центр пропущен.
// Порядок фиксирован: при равных высотах побеждает первый найденный сосед.
var NeighborOffsets = [8]vec.Vec2{
	{X: -1, Y: -1}, {X: -1, Y: 0}, {X: -1, Y: 1},
	{X: 0, Y: -1}, {X: 0, Y: 1},
	{X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1},
}

// CheckSize проверяет размер до выделения памяти.
// Произведение сравнивается делением, чтобы width*height не переполнилось.
func CheckSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if width > MaxCells/height {
		return fmt.Errorf("%w: %dx%d больше %d ячеек", ErrInvalidSize, width, height, MaxCells)
	}
	return nil
}

// Grid — плотная сетка высот width × height.
// Значения хранятся в одном срезе построчно: index = y*width + x.
type Grid struct {
	width  int
	height int
	values []float64
}

// New создаёт сетку, заполненную нулями
func New(width, height int) (*Grid, error) {
	if err := CheckSize(width, height); err != nil {
		return nil, err
	}
	return &Grid{
		width:  width,
		height: height,
		values: make([]float64, width*height),
	}, nil
}

// FromValues создаёт сетку поверх готового буфера (построчный порядок).
// Буфер не копируется.
func FromValues(width, height int, values []float64) (*Grid, error) {
	if err := CheckSize(width, height); err != nil {
		return nil, err
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("длина буфера %d не совпадает с размером %dx%d", len(values), width, height)
	}
	return &Grid{width: width, height: height, values: values}, nil
}

// Width возвращает число столбцов
func (g *Grid) Width() int { return g.width }

// Height возвращает число строк
func (g *Grid) Height() int { return g.height }

// Len возвращает количество ячеек
func (g *Grid) Len() int { return len(g.values) }

// Index переводит (x, y) в индекс плоского буфера
func (g *Grid) Index(x, y int) int {
	return y*g.width + x
}

// InBounds проверяет, что координаты лежат внутри сетки
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// IsInterior проверяет, что у ячейки есть полное 8-связное окружение
func (g *Grid) IsInterior(x, y int) bool {
	return x >= 1 && x < g.width-1 && y >= 1 && y < g.height-1
}

// At возвращает высоту без проверки границ.
// Для внешних запросов используйте GetHeightAt.
func (g *Grid) At(x, y int) float64 {
	return g.values[y*g.width+x]
}

// Set записывает высоту без проверки границ
func (g *Grid) Set(x, y int, h float64) {
	g.values[y*g.width+x] = h
}

// Add прибавляет delta к высоте ячейки без проверки границ
func (g *Grid) Add(x, y int, delta float64) {
	g.values[y*g.width+x] += delta
}

// GetHeightAt возвращает высоту ячейки с проверкой границ
func (g *Grid) GetHeightAt(x, y int) (float64, error) {
	if !g.InBounds(x, y) {
		return 0, fmt.Errorf("(%d,%d) при размере %dx%d: %w", x, y, g.width, g.height, ErrOutOfRange)
	}
	return g.values[g.Index(x, y)], nil
}

// SetHeightAt записывает высоту ячейки с проверкой границ
func (g *Grid) SetHeightAt(x, y int, h float64) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("(%d,%d) при размере %dx%d: %w", x, y, g.width, g.height, ErrOutOfRange)
	}
	g.values[g.Index(x, y)] = h
	return nil
}

// Values отдаёт внутренний буфер (построчный порядок). Изменения видны сетке.
func (g *Grid) Values() []float64 {
	return g.values
}

// Rows возвращает копию сетки в виде [y][x]
func (g *Grid) Rows() [][]float64 {
	rows := make([][]float64, g.height)
	for y := 0; y < g.height; y++ {
		row := make([]float64, g.width)
		copy(row, g.values[y*g.width:(y+1)*g.width])
		rows[y] = row
	}
	return rows
}

// Clone создаёт независимую копию сетки
func (g *Grid) Clone() *Grid {
	values := make([]float64, len(g.values))
	copy(values, g.values)
	return &Grid{width: g.width, height: g.height, values: values}
}

// Equal сравнивает сетки побитово (NaN считается равным только самому себе по битам)
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.width != other.width || g.height != other.height {
		return false
	}
	for i, v := range g.values {
		if math.Float64bits(v) != math.Float64bits(other.values[i]) {
			return false
		}
	}
	return true
}

// Scaled возвращает копию, умноженную на вертикальный масштаб (глубину рельефа)
func (g *Grid) Scaled(depth float64) *Grid {
	out := g.Clone()
	for i := range out.values {
		out.values[i] *= depth
	}
	return out
}

// Neighbor возвращает координаты соседа по смещению и признак попадания в сетку
func (g *Grid) Neighbor(cell vec.Vec2, offset vec.Vec2) (vec.Vec2, bool) {
	n := cell.Add(offset)
	return n, g.InBounds(n.X, n.Y)
}
