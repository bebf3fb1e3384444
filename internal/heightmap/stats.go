package heightmap

import "math"

// Stats содержит сводку по значениям сетки
type Stats struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	NonFinite int     `json:"non_finite"`
}

// Stats вычисляет минимум, максимум и среднее по конечным значениям
func (g *Grid) Stats() Stats {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	count := 0
	for _, v := range g.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.NonFinite++
			continue
		}
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
		count++
	}
	if count == 0 {
		return Stats{NonFinite: s.NonFinite}
	}
	s.Mean = sum / float64(count)
	return s
}
