package erosion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/vec"
)

// ErrGridTooSmall — у сетки меньше 3 ячеек по одной из осей, внутренних ячеек нет
var ErrGridTooSmall = errors.New("grid has no interior cells")

// cancelCheckEvery: как часто Run проверяет отмену контекста
const cancelCheckEvery = 1024

// Parameters описывает проход гидравлической эрозии
type Parameters struct {
	Iterations         int     `json:"iterations" yaml:"iterations"`                   // Количество смоделированных капель
	ErosionStrength    float64 `json:"erosion_strength" yaml:"erosion_strength"`       // Доля уклона, снимаемая с исходной ячейки
	DepositionStrength float64 `json:"deposition_strength" yaml:"deposition_strength"` // Доля снятого, откладываемая в соседе
	MinSlope           float64 `json:"min_slope" yaml:"min_slope"`                     // Минимальный уклон для переноса
}

// DefaultParameters возвращает параметры исходного генератора
func DefaultParameters() Parameters {
	return Parameters{
		Iterations:         10000,
		ErosionStrength:    0.02,
		DepositionStrength: 0.01,
		MinSlope:           0.01,
	}
}

// Validate отклоняет отрицательное число итераций и NaN/Inf
func (p Parameters) Validate() error {
	if p.Iterations < 0 {
		return fmt.Errorf("iterations должно быть >= 0, получено %d", p.Iterations)
	}
	fields := map[string]float64{
		"erosion_strength":    p.ErosionStrength,
		"deposition_strength": p.DepositionStrength,
		"min_slope":           p.MinSlope,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s должно быть конечным числом, получено %v", name, v)
		}
	}
	return nil
}

// Outcome — результат одного шага эрозии
type Outcome int

const (
	// OutcomeLocalMinimum — ни один сосед не ниже ячейки
	OutcomeLocalMinimum Outcome = iota
	// OutcomeBelowThreshold — уклон не превышает MinSlope
	OutcomeBelowThreshold
	// OutcomeTransferred — материал перенесён
	OutcomeTransferred
)

// String возвращает строковое представление исхода
func (o Outcome) String() string {
	switch o {
	case OutcomeLocalMinimum:
		return "local_minimum"
	case OutcomeBelowThreshold:
		return "below_threshold"
	case OutcomeTransferred:
		return "transferred"
	default:
		return "unknown"
	}
}

// StepResult описывает один шаг
type StepResult struct {
	Source    vec.Vec2
	Sink      vec.Vec2
	Slope     float64
	Eroded    float64
	Deposited float64
	Outcome   Outcome
}

// Stats содержит сводку по прогону
type Stats struct {
	Iterations     int     `json:"iterations"`
	Transfers      int     `json:"transfers"`
	LocalMinima    int     `json:"local_minima"`
	BelowThreshold int     `json:"below_threshold"`
	Eroded         float64 `json:"eroded"`
	Deposited      float64 `json:"deposited"`
}

func (s *Stats) record(r StepResult) {
	s.Iterations++
	switch r.Outcome {
	case OutcomeTransferred:
		s.Transfers++
		s.Eroded += r.Eroded
		s.Deposited += r.Deposited
	case OutcomeBelowThreshold:
		s.BelowThreshold++
	case OutcomeLocalMinimum:
		s.LocalMinima++
	}
}

// ProgressFunc получает число выполненных итераций и их общее количество
type ProgressFunc func(done, total int)

// Simulator выполняет стохастическую эрозию над сеткой на месте.
// Итерации строго последовательны: следующая читает высоты, изменённые предыдущей.
// Simulator не потокобезопасен, сетку во время Run никто другой менять не должен.
type Simulator struct {
	params        Parameters
	rng           *rand.Rand
	progress      ProgressFunc
	progressEvery int
}

// NewSimulator создаёт симулятор. При rng == nil генератор сидируется временем,
// и прогоны не воспроизводимы.
func NewSimulator(params Parameters, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{params: params, rng: rng}
}

// OnProgress подписывает fn на прогресс каждые every итераций (и по завершении)
func (s *Simulator) OnProgress(fn ProgressFunc, every int) *Simulator {
	if every < 1 {
		every = 1
	}
	s.progress = fn
	s.progressEvery = every
	return s
}

// Parameters возвращает параметры симулятора
func (s *Simulator) Parameters() Parameters {
	return s.params
}

// CheckGrid проверяет, что у сетки есть внутренние ячейки, если итерации вообще будут
func (s *Simulator) CheckGrid(grid *heightmap.Grid) error {
	if s.params.Iterations > 0 && (grid.Width() < 3 || grid.Height() < 3) {
		return fmt.Errorf("размер %dx%d: %w", grid.Width(), grid.Height(), ErrGridTooSmall)
	}
	return nil
}

// Run выполняет Iterations шагов над сеткой. Ошибки параметров и размера
// возвращаются до первой записи в сетку.
func (s *Simulator) Run(ctx context.Context, grid *heightmap.Grid) (Stats, error) {
	var stats Stats
	if err := s.params.Validate(); err != nil {
		return stats, err
	}
	if err := s.CheckGrid(grid); err != nil {
		return stats, err
	}

	total := s.params.Iterations
	for i := 0; i < total; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		stats.record(s.Step(grid, s.PickCell(grid)))

		if s.progress != nil && (i+1)%s.progressEvery == 0 {
			s.progress(i+1, total)
		}
	}
	if s.progress != nil && total%s.progressEvery != 0 {
		s.progress(total, total)
	}
	return stats, nil
}

// PickCell выбирает равномерно случайную внутреннюю ячейку:
// x ∈ [1, width-2], y ∈ [1, height-2]
func (s *Simulator) PickCell(grid *heightmap.Grid) vec.Vec2 {
	return vec.Vec2{
		X: 1 + s.rng.Intn(grid.Width()-2),
		Y: 1 + s.rng.Intn(grid.Height()-2),
	}
}

// Step выполняет шаг эрозии из заданной ячейки.
// Снятое количество amount = slope * ErosionStrength, а сосед получает
// amount * DepositionStrength, так что при DepositionStrength < 1 масса не сохраняется.
func (s *Simulator) Step(grid *heightmap.Grid, cell vec.Vec2) StepResult {
	result := StepResult{Source: cell, Sink: cell, Outcome: OutcomeLocalMinimum}

	lowest := LowestNeighbor(grid, cell)
	if lowest == cell {
		return result
	}

	result.Sink = lowest
	result.Slope = grid.At(cell.X, cell.Y) - grid.At(lowest.X, lowest.Y)
	if result.Slope <= s.params.MinSlope {
		result.Outcome = OutcomeBelowThreshold
		return result
	}

	// Эрозия
	amount := result.Slope * s.params.ErosionStrength
	grid.Add(cell.X, cell.Y, -amount)

	// Отложение осадка
	deposit := amount * s.params.DepositionStrength
	grid.Add(lowest.X, lowest.Y, deposit)

	result.Eroded = amount
	result.Deposited = deposit
	result.Outcome = OutcomeTransferred
	return result
}

// LowestNeighbor возвращает самого низкого из 8 соседей или саму ячейку,
// если строго ниже никого нет. Соседи за пределами сетки пропускаются.
func LowestNeighbor(grid *heightmap.Grid, cell vec.Vec2) vec.Vec2 {
	lowest := cell
	lowestHeight := grid.At(cell.X, cell.Y)

	for _, offset := range heightmap.NeighborOffsets {
		n, ok := grid.Neighbor(cell, offset)
		if !ok {
			continue
		}
		if h := grid.At(n.X, n.Y); h < lowestHeight {
			lowest = n
			lowestHeight = h
		}
	}
	return lowest
}
