package config

import (
	"fmt"
	"math/rand"
)

// Диапазоны случайных параметров, как в окне редактора ландшафта.
// Границы целых диапазонов полуоткрытые: [min, max).
const (
	randomDepthMin, randomDepthMax                 = 10, 100
	randomScaleMin, randomScaleMax                 = 10.0, 100.0
	randomOctavesMin, randomOctavesMax             = 1, 10
	randomBaseFrequencyMin, randomBaseFrequencyMax = 1.0, 5.0
	randomBaseAmplitudeMin, randomBaseAmplitudeMax = 0.1, 2.0
	randomLacunarityMin, randomLacunarityMax       = 0.0, 7.0
	randomPersistence                              = 0.1
)

// RandomizeNoise возвращает копию tc со случайными параметрами шума и глубиной.
// Размеры сетки и параметры эрозии не трогаются.
func RandomizeNoise(rng *rand.Rand, tc TerrainConfig) (TerrainConfig, error) {
	depth, err := RandomInt(rng, randomDepthMin, randomDepthMax)
	if err != nil {
		return tc, err
	}
	octaves, err := RandomInt(rng, randomOctavesMin, randomOctavesMax)
	if err != nil {
		return tc, err
	}

	floats := []struct {
		dst      *float64
		min, max float64
	}{
		{&tc.Noise.Scale, randomScaleMin, randomScaleMax},
		{&tc.Noise.BaseFrequency, randomBaseFrequencyMin, randomBaseFrequencyMax},
		{&tc.Noise.BaseAmplitude, randomBaseAmplitudeMin, randomBaseAmplitudeMax},
		{&tc.Noise.Lacunarity, randomLacunarityMin, randomLacunarityMax},
	}
	for _, f := range floats {
		v, err := RandomFloat(rng, f.min, f.max)
		if err != nil {
			return tc, err
		}
		*f.dst = v
	}

	tc.Depth = float64(depth)
	tc.Noise.Octaves = octaves
	tc.Noise.Persistence = randomPersistence
	return tc, nil
}

// RandomFloat возвращает число из [min, max)
func RandomFloat(rng *rand.Rand, min, max float64) (float64, error) {
	if min > max {
		return 0, fmt.Errorf("min %v больше max %v", min, max)
	}
	return min + rng.Float64()*(max-min), nil
}

// RandomInt возвращает число из [min, max); при min == max возвращает min
func RandomInt(rng *rand.Rand, min, max int) (int, error) {
	if min > max {
		return 0, fmt.Errorf("min %d больше max %d", min, max)
	}
	if min == max {
		return min, nil
	}
	return min + rng.Intn(max-min), nil
}
