package terrain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/erosion"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/noise"
	"github.com/annel0/terragen/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxCells ограничивает размер сетки одного запроса (4096x4096)
const DefaultMaxCells = 4096 * 4096

// Request описывает параметры одного прогона генерации
type Request struct {
	Width   int                `json:"width"`
	Height  int                `json:"height"`
	Depth   float64            `json:"depth"`
	Seed    int64              `json:"seed"`   // 0: сид от текущего времени
	Source  string             `json:"source"` // perlin | simplex
	Noise   noise.Parameters   `json:"noise"`
	Erosion erosion.Parameters `json:"erosion"`
}

// RequestFromConfig собирает запрос из секции terrain конфигурации
func RequestFromConfig(tc config.TerrainConfig) Request {
	return Request{
		Width:   tc.Width,
		Height:  tc.Height,
		Depth:   tc.Depth,
		Seed:    tc.Seed,
		Source:  tc.Source,
		Noise:   tc.Noise,
		Erosion: tc.Erosion,
	}
}

func (r Request) terrainConfig() config.TerrainConfig {
	return config.TerrainConfig{
		Width:   r.Width,
		Height:  r.Height,
		Depth:   r.Depth,
		Seed:    r.Seed,
		Source:  r.Source,
		Noise:   r.Noise,
		Erosion: r.Erosion,
	}
}

// Service генерирует ландшафты, сохраняет их и оповещает подписчиков
type Service struct {
	repo     storage.TerrainRepo
	bus      eventbus.EventBus
	metrics  *Metrics
	logger   *logging.Logger
	name     string
	workers  int
	maxCells int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// ServiceOption настраивает Service
type ServiceOption func(*Service)

// WithEventBus включает публикацию событий
func WithEventBus(bus eventbus.EventBus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

// WithMetrics включает Prometheus-метрики
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер компонента
func WithLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithServiceWorkers задаёт число горутин синтеза шума
func WithServiceWorkers(n int) ServiceOption {
	return func(s *Service) { s.workers = n }
}

// WithMaxCells ограничивает width*height одного запроса
func WithMaxCells(n int) ServiceOption {
	return func(s *Service) { s.maxCells = n }
}

// WithRandomSource задаёт генератор для случайных параметров
func WithRandomSource(rng *rand.Rand) ServiceOption {
	return func(s *Service) { s.rng = rng }
}

// NewService создаёт сервис поверх хранилища
func NewService(repo storage.TerrainRepo, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		name:     "terragen",
		workers:  1,
		maxCells: DefaultMaxCells,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Create генерирует ландшафт по запросу и сохраняет его
func (s *Service) Create(ctx context.Context, req Request) (*storage.Record, error) {
	ctx, span := tracer.Start(ctx, "terrain.service.create")
	defer span.End()

	// Делением, а не произведением: width*height может переполнить int
	if req.Width > 0 && req.Height > 0 && s.maxCells > 0 && req.Width > s.maxCells/req.Height {
		return nil, fmt.Errorf("%w: %dx%d больше лимита %d ячеек", ErrInvalidDimension, req.Width, req.Height, s.maxCells)
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	src, err := noise.NewSource(req.Source, seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	sourceName := req.Source
	if sourceName == "" {
		sourceName = noise.SourcePerlin
	}

	start := time.Now()
	res, err := Generate(req.Width, req.Height, req.Noise, req.Erosion,
		WithContext(ctx),
		WithSeed(seed),
		WithSource(src),
		WithWorkers(s.workers),
	)
	elapsed := time.Since(start)
	s.metrics.observe(sourceName, elapsed, res, err)
	if err != nil {
		s.warn("Генерация %dx%d не удалась: %v", req.Width, req.Height, err)
		return nil, err
	}

	rec := &storage.Record{
		Width:        req.Width,
		Height:       req.Height,
		Depth:        req.Depth,
		Seed:         res.Seed,
		Source:       sourceName,
		Noise:        req.Noise,
		Erosion:      req.Erosion,
		ErosionStats: res.Erosion,
		HeightStats:  res.Grid.Stats(),
	}
	if err := s.repo.Save(ctx, rec, res.Grid); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("сохранение ландшафта: %w", err)
	}
	span.SetAttributes(attribute.String("terrain.id", rec.ID))

	s.info("🏔️ Ландшафт %s %dx%d (seed=%d, source=%s) за %v, переносов %d",
		rec.ID, rec.Width, rec.Height, rec.Seed, rec.Source, elapsed, rec.ErosionStats.Transfers)

	s.publish(ctx, eventbus.TerrainGenerated, eventbus.TerrainGeneratedEvent{
		ID:        rec.ID,
		Width:     rec.Width,
		Height:    rec.Height,
		Seed:      rec.Seed,
		Source:    rec.Source,
		Transfers: rec.ErosionStats.Transfers,
		MinHeight: rec.HeightStats.Min,
		MaxHeight: rec.HeightStats.Max,
		Duration:  elapsed,
	})
	return rec, nil
}

// Randomize заменяет параметры шума и глубину случайными из диапазонов редактора
func (s *Service) Randomize(base Request) (Request, error) {
	s.rngMu.Lock()
	tc, err := config.RandomizeNoise(s.rng, base.terrainConfig())
	s.rngMu.Unlock()
	if err != nil {
		return base, err
	}

	out := base
	out.Depth = tc.Depth
	out.Noise = tc.Noise
	return out, nil
}

// CreateRandom генерирует ландшафт со случайными параметрами шума
func (s *Service) CreateRandom(ctx context.Context, base Request) (*storage.Record, error) {
	req, err := s.Randomize(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return s.Create(ctx, req)
}

// Get возвращает описание ландшафта
func (s *Service) Get(ctx context.Context, id string) (*storage.Record, error) {
	return s.repo.LoadRecord(ctx, id)
}

// Heights возвращает сетку высот
func (s *Service) Heights(ctx context.Context, id string) (*heightmap.Grid, error) {
	return s.repo.LoadGrid(ctx, id)
}

// HeightAt возвращает высоту вершины (x, y)
func (s *Service) HeightAt(ctx context.Context, id string, x, y int) (float64, error) {
	grid, err := s.repo.LoadGrid(ctx, id)
	if err != nil {
		return 0, err
	}
	return grid.GetHeightAt(x, y)
}

// List возвращает последние ландшафты
func (s *Service) List(ctx context.Context, limit int) ([]*storage.Record, error) {
	return s.repo.List(ctx, limit)
}

// Delete удаляет ландшафт. Для неизвестного ID вернёт storage.ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.LoadRecord(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.info("🗑️ Ландшафт %s удалён", id)
	s.publish(ctx, eventbus.TerrainDeleted, eventbus.TerrainDeletedEvent{ID: id})
	return nil
}

// IsNotFound сообщает, что ландшафт не найден
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

// IsInvalid сообщает об ошибке входных данных
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidDimension) || errors.Is(err, ErrInvalidParameter) || errors.Is(err, heightmap.ErrOutOfRange)
}

func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.bus == nil {
		return
	}

	ev, err := eventbus.NewEnvelope(eventType, s.name, payload)
	if err != nil {
		s.warn("Не удалось собрать событие %s: %v", eventType, err)
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.CorrelationID = sc.TraceID().String()
	}

	// Ошибка шины не отменяет сохранённый ландшафт
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.warn("Не удалось опубликовать %s: %v", eventType, err)
	}
}

func (s *Service) info(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(format, args...)
		return
	}
	logging.Info(format, args...)
}

func (s *Service) warn(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(format, args...)
		return
	}
	logging.Warn(format, args...)
}
