package terrain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/annel0/terragen/internal/erosion"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/noise"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrInvalidDimension: размер сетки не подходит для запрошенного прогона
	ErrInvalidDimension = errors.New("invalid terrain dimension")
	// ErrInvalidParameter: параметр шума или эрозии вне допустимых значений
	ErrInvalidParameter = errors.New("invalid terrain parameter")
)

var tracer = otel.Tracer("github.com/annel0/terragen/internal/terrain")

// Option настраивает один прогон генерации
type Option func(*options)

type options struct {
	ctx           context.Context
	seed          int64
	seeded        bool
	rng           *rand.Rand
	source        noise.Source
	workers       int
	progress      erosion.ProgressFunc
	progressEvery int
}

// WithContext задаёт контекст для отмены и трассировки
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithSeed делает прогон воспроизводимым: сид используется и для шума, и для эрозии
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// WithRand передаёт готовый генератор случайных чисел для эрозии
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithSource заменяет примитив шума (по умолчанию Перлин)
func WithSource(src noise.Source) Option {
	return func(o *options) { o.source = src }
}

// WithWorkers задаёт число горутин для синтеза шума
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgress подписывает fn на прогресс эрозии
func WithProgress(fn erosion.ProgressFunc, every int) Option {
	return func(o *options) {
		o.progress = fn
		o.progressEvery = every
	}
}

// Result содержит сетку высот и сводка по прогону
type Result struct {
	Grid    *heightmap.Grid
	Erosion erosion.Stats
	Seed    int64
}

// GenerateTerrainHeights синтезирует базовую сетку шумом fBM и прогоняет по ней эрозию
func GenerateTerrainHeights(width, height int, np noise.Parameters, ep erosion.Parameters, opts ...Option) (*heightmap.Grid, error) {
	res, err := Generate(width, height, np, ep, opts...)
	if err != nil {
		return nil, err
	}
	return res.Grid, nil
}

// Validate проверяет размеры и параметры до любой работы с сеткой
func Validate(width, height int, np noise.Parameters, ep erosion.Parameters) error {
	if err := heightmap.CheckSize(width, height); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDimension, err)
	}
	if err := np.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if ep.Iterations > 0 && (width < 3 || height < 3) {
		return fmt.Errorf("%w: для эрозии нужна сетка не меньше 3x3, получено %dx%d", ErrInvalidDimension, width, height)
	}
	return nil
}

// Generate выполняет оба этапа. При любой ошибке сетка не возвращается.
func Generate(width, height int, np noise.Parameters, ep erosion.Parameters, opts ...Option) (*Result, error) {
	o := options{ctx: context.Background(), workers: 1}
	for _, opt := range opts {
		opt(&o)
	}

	if err := Validate(width, height, np, ep); err != nil {
		return nil, err
	}

	if !o.seeded && o.rng == nil {
		o.seed = time.Now().UnixNano()
	}
	if o.source == nil {
		// Без явного сида шум фиксирован (сид 0), случайна только эрозия
		sourceSeed := int64(0)
		if o.seeded {
			sourceSeed = o.seed
		}
		o.source = noise.NewPerlinSource(sourceSeed)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.seed))
	}

	ctx, span := tracer.Start(o.ctx, "terrain.generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("terrain.width", width),
		attribute.Int("terrain.height", height),
		attribute.Int("noise.octaves", np.Octaves),
		attribute.Int("erosion.iterations", ep.Iterations),
	)

	_, noiseSpan := tracer.Start(ctx, "terrain.noise")
	grid, err := noise.NewSynthesizer(np, o.source).WithWorkers(o.workers).Generate(ctx, width, height)
	noiseSpan.End()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("синтез шума: %w", err)
	}

	sim := erosion.NewSimulator(ep, o.rng)
	if o.progress != nil {
		sim.OnProgress(o.progress, o.progressEvery)
	}

	_, erosionSpan := tracer.Start(ctx, "terrain.erosion")
	stats, err := sim.Run(ctx, grid)
	erosionSpan.End()
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, erosion.ErrGridTooSmall) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDimension, err)
		}
		return nil, fmt.Errorf("эрозия: %w", err)
	}
	span.SetAttributes(attribute.Int("erosion.transfers", stats.Transfers))

	return &Result{Grid: grid, Erosion: stats, Seed: o.seed}, nil
}
