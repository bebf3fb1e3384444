package noise

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource возвращает одно и то же значение в любой точке
func constSource(v float64) Source {
	return SourceFunc(func(x, y float64) float64 { return v })
}

// recordingSource запоминает координаты выборок
type recordingSource struct {
	calls [][2]float64
	value float64
}

func (r *recordingSource) Noise2D(x, y float64) float64 {
	r.calls = append(r.calls, [2]float64{x, y})
	return r.value
}

func TestPerlinSourceDeterministic(t *testing.T) {
	a := NewPerlinSource(12345)
	b := NewPerlinSource(12345)

	for i := 0; i < 100; i++ {
		x := float64(i) * 0.13
		y := float64(i) * 0.29
		require.Equal(t, a.Noise2D(x, y), b.Noise2D(x, y), "Noise2D не детерминирован в (%f, %f)", x, y)
	}
}

func TestSourcesRange(t *testing.T) {
	sources := map[string]Source{
		SourcePerlin:  NewPerlinSource(42),
		SourceSimplex: NewSimplexSource(42),
	}
	for name, src := range sources {
		for i := 0; i < 5000; i++ {
			x := float64(i)*0.37 - 500
			y := float64(i)*0.53 - 500
			v := src.Noise2D(x, y)
			if v < 0 || v > 1 {
				t.Fatalf("%s: Noise2D(%f, %f) = %f вне [0,1]", name, x, y, v)
			}
		}
	}
}

func TestNewSource(t *testing.T) {
	src, err := NewSource("", 1)
	require.NoError(t, err)
	assert.IsType(t, &PerlinSource{}, src)

	src, err = NewSource("Simplex", 1)
	require.NoError(t, err)
	assert.IsType(t, &SimplexSource{}, src)

	_, err = NewSource("worley", 1)
	assert.Error(t, err)
}

func TestCalculateNoiseHeightClamped(t *testing.T) {
	cases := []Parameters{
		{Octaves: 4, BaseFrequency: 1, BaseAmplitude: 10, Lacunarity: 2, Persistence: 0.5, Scale: 20},
		{Octaves: 3, BaseFrequency: 1, BaseAmplitude: -3, Lacunarity: 2, Persistence: 0.5, Scale: 20},
		{Octaves: 8, BaseFrequency: 5, BaseAmplitude: 2, Lacunarity: 7, Persistence: 1.5, Scale: 100},
		{Octaves: 10, BaseFrequency: 1e300, BaseAmplitude: 1e300, Lacunarity: 1e300, Persistence: 1e300, Scale: 1e300},
	}
	src := NewPerlinSource(7)
	for _, p := range cases {
		s := NewSynthesizer(p, src)
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				h := s.CalculateNoiseHeight(x, y, 16)
				if !(h >= 0 && h <= 1) {
					t.Fatalf("параметры %+v: высота (%d,%d) = %v вне [0,1]", p, x, y, h)
				}
			}
		}
	}
}

func TestSingleOctaveIsScaledSample(t *testing.T) {
	src := NewPerlinSource(99)
	p := Parameters{Octaves: 1, BaseFrequency: 3, BaseAmplitude: 0.8, Lacunarity: 2, Persistence: 0.5, Scale: 1.5}
	s := NewSynthesizer(p, src)

	const width = 32
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			f := p.BaseFrequency / width
			want := clamp01(src.Noise2D(float64(x)*f*p.Scale, float64(y)*f*p.Scale) * p.BaseAmplitude)
			assert.Equal(t, want, s.CalculateNoiseHeight(x, y, width))
		}
	}
}

func TestFrequencyNormalizedByWidth(t *testing.T) {
	rec := &recordingSource{value: 0.1}
	p := Parameters{Octaves: 3, BaseFrequency: 2, BaseAmplitude: 1, Lacunarity: 3, Persistence: 0.5, Scale: 10}
	s := NewSynthesizer(p, rec)

	s.CalculateNoiseHeight(4, 2, 8)

	require.Len(t, rec.calls, 3)
	// frequency = 2/8 = 0.25, затем 0.75 и 2.25
	assert.InDelta(t, 4*0.25*10, rec.calls[0][0], 1e-12)
	assert.InDelta(t, 2*0.25*10, rec.calls[0][1], 1e-12)
	assert.InDelta(t, 4*0.75*10, rec.calls[1][0], 1e-12)
	assert.InDelta(t, 4*2.25*10, rec.calls[2][0], 1e-12)
}

func TestAmplitudePersistence(t *testing.T) {
	p := Parameters{Octaves: 3, BaseFrequency: 1, BaseAmplitude: 0.4, Lacunarity: 2, Persistence: 0.5, Scale: 1}
	s := NewSynthesizer(p, constSource(0.5))
	// 0.5*0.4 + 0.5*0.2 + 0.5*0.1
	assert.InDelta(t, 0.35, s.CalculateNoiseHeight(3, 3, 10), 1e-12)
}

func TestZeroLacunarityCollapsesToOrigin(t *testing.T) {
	rec := &recordingSource{value: 0.2}
	p := Parameters{Octaves: 4, BaseFrequency: 1, BaseAmplitude: 1, Lacunarity: 0, Persistence: 0.5, Scale: 5}
	s := NewSynthesizer(p, rec)

	h := s.CalculateNoiseHeight(7, 3, 10)

	require.Len(t, rec.calls, 4)
	for _, c := range rec.calls[1:] {
		assert.Equal(t, [2]float64{0, 0}, c, "после первой октавы частота нулевая")
	}
	assert.InDelta(t, 0.2*(1+0.5+0.25+0.125), h, 1e-12)
}

func TestGenerateParallelMatchesSerial(t *testing.T) {
	p := DefaultParameters()
	src := NewPerlinSource(2024)

	serial, err := NewSynthesizer(p, src).Generate(context.Background(), 37, 23)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 64} {
		parallel, err := NewSynthesizer(p, src).WithWorkers(workers).Generate(context.Background(), 37, 23)
		require.NoError(t, err)
		assert.True(t, serial.Equal(parallel), "workers=%d", workers)
	}
}

func TestGenerateFillsEveryCell(t *testing.T) {
	p := DefaultParameters()
	s := NewSynthesizer(p, NewSimplexSource(5))

	grid, err := s.Generate(context.Background(), 9, 6)
	require.NoError(t, err)
	for y := 0; y < 6; y++ {
		for x := 0; x < 9; x++ {
			assert.Equal(t, s.CalculateNoiseHeight(x, y, 9), grid.At(x, y))
		}
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid, err := NewSynthesizer(DefaultParameters(), constSource(0.5)).Generate(ctx, 8, 8)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, grid)

	grid, err = NewSynthesizer(DefaultParameters(), constSource(0.5)).WithWorkers(4).Generate(ctx, 8, 8)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, grid)
}

func TestParametersValidate(t *testing.T) {
	assert.NoError(t, DefaultParameters().Validate())

	p := DefaultParameters()
	p.Octaves = 0
	assert.Error(t, p.Validate())

	p = DefaultParameters()
	p.Lacunarity = 0
	assert.NoError(t, p.Validate(), "нулевая лакунарность допустима")

	p = DefaultParameters()
	p.Scale = math.Inf(1)
	assert.Error(t, p.Validate())

	p = DefaultParameters()
	p.Persistence = math.NaN()
	assert.Error(t, p.Validate())
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.1))
	assert.Equal(t, 1.0, clamp01(1.1))
	assert.Equal(t, 0.5, clamp01(0.5))
	assert.Equal(t, 0.0, clamp01(math.NaN()))
	assert.Equal(t, 1.0, clamp01(math.Inf(1)))
}
