package noise

import (
	"context"
	"fmt"
	"math"

	"github.com/annel0/terragen/internal/heightmap"
	"golang.org/x/sync/errgroup"
)

// Parameters описывает сумму октав fBM.
// Диапазоны не проверяются: lacunarity = 0 или отрицательная амплитуда
// дают вырожденный, но корректный результат.
type Parameters struct {
	Octaves       int     `json:"octaves" yaml:"octaves"`               // Количество слоёв шума
	BaseFrequency float64 `json:"base_frequency" yaml:"base_frequency"` // Базовая частота (делится на ширину сетки)
	BaseAmplitude float64 `json:"base_amplitude" yaml:"base_amplitude"` // Базовая амплитуда
	Lacunarity    float64 `json:"lacunarity" yaml:"lacunarity"`         // Множитель частоты между октавами
	Persistence   float64 `json:"persistence" yaml:"persistence"`       // Множитель амплитуды между октавами
	Scale         float64 `json:"scale" yaml:"scale"`                   // Горизонтальный масштаб
}

// DefaultParameters возвращает параметры исходного генератора
func DefaultParameters() Parameters {
	return Parameters{
		Octaves:       4,
		BaseFrequency: 1,
		BaseAmplitude: 1,
		Lacunarity:    2,
		Persistence:   0.5,
		Scale:         20,
	}
}

// Validate отклоняет только то, что ломает конечность значений:
// octaves < 1 и NaN/Inf в числовых полях
func (p Parameters) Validate() error {
	if p.Octaves < 1 {
		return fmt.Errorf("octaves должно быть >= 1, получено %d", p.Octaves)
	}
	fields := map[string]float64{
		"base_frequency": p.BaseFrequency,
		"base_amplitude": p.BaseAmplitude,
		"lacunarity":     p.Lacunarity,
		"persistence":    p.Persistence,
		"scale":          p.Scale,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s должно быть конечным числом, получено %v", name, v)
		}
	}
	return nil
}

// Synthesizer строит базовую карту высот суммой октав когерентного шума
type Synthesizer struct {
	params  Parameters
	source  Source
	workers int
}

// NewSynthesizer создаёт синтезатор с одним рабочим потоком
func NewSynthesizer(params Parameters, source Source) *Synthesizer {
	return &Synthesizer{params: params, source: source, workers: 1}
}

// WithWorkers задаёт число горутин, между которыми делятся строки сетки.
// Каждая ячейка считается независимо, поэтому результат не зависит от числа потоков.
func (s *Synthesizer) WithWorkers(n int) *Synthesizer {
	if n < 1 {
		n = 1
	}
	s.workers = n
	return s
}

// Parameters возвращает параметры синтезатора
func (s *Synthesizer) Parameters() Parameters {
	return s.params
}

// CalculateNoiseHeight вычисляет высоту ячейки (x, y) для сетки шириной width.
// Частота нормируется шириной, чтобы длина волны не зависела от разрешения.
func (s *Synthesizer) CalculateNoiseHeight(x, y, width int) float64 {
	total := 0.0
	frequency := s.params.BaseFrequency / float64(width)
	amplitude := s.params.BaseAmplitude

	for i := 0; i < s.params.Octaves; i++ {
		xCoord := float64(x) * frequency * s.params.Scale
		yCoord := float64(y) * frequency * s.params.Scale
		total += s.source.Noise2D(xCoord, yCoord) * amplitude

		frequency *= s.params.Lacunarity
		amplitude *= s.params.Persistence
	}

	return clamp01(total)
}

// Generate заполняет новую сетку width × height
func (s *Synthesizer) Generate(ctx context.Context, width, height int) (*heightmap.Grid, error) {
	grid, err := heightmap.New(width, height)
	if err != nil {
		return nil, err
	}

	workers := s.workers
	if workers > height {
		workers = height
	}

	if workers <= 1 {
		for y := 0; y < height; y++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s.fillRow(grid, y)
		}
		return grid, nil
	}

	// Строки делятся полосами: каждая горутина пишет только свои ячейки
	g, gctx := errgroup.WithContext(ctx)
	rowsPerWorker := (height + workers - 1) / workers
	for start := 0; start < height; start += rowsPerWorker {
		from, to := start, start+rowsPerWorker
		if to > height {
			to = height
		}
		g.Go(func() error {
			for y := from; y < to; y++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.fillRow(grid, y)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grid, nil
}

func (s *Synthesizer) fillRow(grid *heightmap.Grid, y int) {
	width := grid.Width()
	for x := 0; x < width; x++ {
		grid.Set(x, y, s.CalculateNoiseHeight(x, y, width))
	}
}

// clamp01 ограничивает значение отрезком [0,1]; NaN превращается в 0
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
