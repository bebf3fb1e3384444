package vec

// Vec2 представляет целочисленные координаты ячейки сетки (столбец X, строка Y)
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add возвращает сумму координат
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}
