package heightmap

import (
	"encoding/binary"
	"fmt"
	"math"
)

// headerSize: width и height по uint32
const headerSize = 8

// MarshalBinary кодирует сетку: [width u32][height u32][float64 × width*height], little-endian
func (g *Grid) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+8*len(g.values))
	binary.LittleEndian.PutUint32(buf[0:], uint32(g.width))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.height))
	for i, v := range g.values {
		binary.LittleEndian.PutUint64(buf[headerSize+8*i:], math.Float64bits(v))
	}
	return buf, nil
}

// UnmarshalBinary восстанавливает сетку из формата MarshalBinary
func (g *Grid) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("повреждённые данные сетки: %d байт", len(data))
	}
	w := binary.LittleEndian.Uint32(data[0:])
	h := binary.LittleEndian.Uint32(data[4:])
	// Сравниваем число ячеек в uint64: u32*u32 помещается без переполнения
	body := len(data) - headerSize
	cells := uint64(w) * uint64(h)
	if body%8 != 0 || uint64(body/8) != cells {
		return fmt.Errorf("повреждённые данные сетки: %dx%d не совпадает с %d байт", w, h, len(data))
	}
	width, height := int(w), int(h)
	if err := CheckSize(width, height); err != nil {
		return fmt.Errorf("повреждённые данные сетки: %w", err)
	}

	values := make([]float64, width*height)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[headerSize+8*i:]))
	}
	g.width = width
	g.height = height
	g.values = values
	return nil
}
