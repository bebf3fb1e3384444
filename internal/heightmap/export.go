package heightmap

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
)

// normalizer приводит значения к [0,1] по минимуму и максимуму сетки.
// После эрозии высоты могут выйти за [0,1], поэтому экспорт нормализует по факту.
func (g *Grid) normalizer() func(float64) float64 {
	s := g.Stats()
	span := s.Max - s.Min
	return func(v float64) float64 {
		if span <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return (v - s.Min) / span
	}
}

// Image строит 8-битное изображение в оттенках серого (x столбец, y строка)
func (g *Grid) Image() *image.Gray {
	norm := g.normalizer()
	img := image.NewGray(image.Rect(0, 0, g.width, g.height))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(norm(g.At(x, y)) * 255))})
		}
	}
	return img
}

// WritePNG пишет превью сетки в формате PNG
func (g *Grid) WritePNG(w io.Writer) error {
	if err := png.Encode(w, g.Image()); err != nil {
		return fmt.Errorf("ошибка кодирования PNG: %w", err)
	}
	return nil
}

// WriteRAW16 пишет 16-битную карту высот (little-endian, построчно),
// формат, который принимают редакторы ландшафта как .raw/.r16
func (g *Grid) WriteRAW16(w io.Writer) error {
	norm := g.normalizer()
	buf := make([]byte, 2*len(g.values))
	for i, v := range g.values {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(math.Round(norm(v)*math.MaxUint16)))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("ошибка записи RAW16: %w", err)
	}
	return nil
}
