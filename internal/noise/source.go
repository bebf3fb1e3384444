package noise

import (
	"fmt"
	"strings"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Source — примитив когерентного 2D шума.
// Noise2D должен быть детерминированным, непрерывным и возвращать значения в [0,1].
type Source interface {
	Noise2D(x, y float64) float64
}

// SourceFunc позволяет использовать функцию как Source
type SourceFunc func(x, y float64) float64

// Noise2D вызывает саму функцию
func (f SourceFunc) Noise2D(x, y float64) float64 {
	return f(x, y)
}

// Имена поддерживаемых источников шума
const (
	SourcePerlin  = "perlin"
	SourceSimplex = "simplex"
)

// PerlinSource: градиентный шум Перлина с одной октавой.
// Октавы складывает Synthesizer, поэтому библиотечный шум используется с n = 1.
type PerlinSource struct {
	p *perlin.Perlin
}

// NewPerlinSource инициализирует генератор шума Перлина с указанным сидом
func NewPerlinSource(seed int64) *PerlinSource {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(1) // Одна октава
	return &PerlinSource{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// Noise2D возвращает значение шума Перлина для указанных координат (от 0 до 1)
func (s *PerlinSource) Noise2D(x, y float64) float64 {
	// Получаем значение шума (от -1 до 1) и переводим в диапазон от 0 до 1
	return clamp01((s.p.Noise2D(x, y) + 1.0) / 2.0)
}

// SimplexSource: шум OpenSimplex, нормализованный в [0,1]
type SimplexSource struct {
	n opensimplex.Noise
}

// NewSimplexSource создаёт источник OpenSimplex с указанным сидом
func NewSimplexSource(seed int64) *SimplexSource {
	return &SimplexSource{n: opensimplex.NewNormalized(seed)}
}

// Noise2D возвращает значение шума OpenSimplex (от 0 до 1)
func (s *SimplexSource) Noise2D(x, y float64) float64 {
	return clamp01(s.n.Eval2(x, y))
}

// NewSource создаёт источник по имени ("perlin" по умолчанию, "simplex")
func NewSource(name string, seed int64) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SourcePerlin:
		return NewPerlinSource(seed), nil
	case SourceSimplex, "opensimplex":
		return NewSimplexSource(seed), nil
	default:
		return nil, fmt.Errorf("неизвестный источник шума %q", name)
	}
}
