package world

import "math"

// Frame is everything besides the world offset needed to map between the
// continuous camera space and the tile grid. All methods are pure.
type Frame struct {
	// Center is the fixed viewport point the character is drawn at.
	Center Vec
	Size   Size
	TileW  float64
	TileH  float64
	// Container is the per-layer translation of the tile container.
	Container Vec
}

// Position is the result of locating the character for an offset.
type Position struct {
	GridX, GridY   int
	FracX, FracY   float64
	PixelX, PixelY float64
	// InBounds is false when the pixel position lies outside the layer; the
	// grid coordinates are clamped into the layer regardless.
	InBounds bool
}

func (p Position) Cell() Cell { return Cell{X: p.GridX, Y: p.GridY} }

func (f Frame) valid() bool {
	return f.TileW > 0 && f.TileH > 0 && f.Size.Valid()
}

// Locate converts a world offset into grid and pixel coordinates. Passing a
// candidate offset (current offset plus a delta) is the calculate-only mode
// used for collision pre-checks.
func (f Frame) Locate(offset Vec) Position {
	if !f.valid() {
		return Position{}
	}
	px := f.Center.X - offset.X - f.Container.X
	py := f.Center.Y - offset.Y - f.Container.Y

	tx := px / f.TileW
	ty := py / f.TileH
	gx := math.Floor(tx)
	gy := math.Floor(ty)

	pos := Position{
		GridX:  int(gx),
		GridY:  int(gy),
		FracX:  tx - gx,
		FracY:  ty - gy,
		PixelX: px,
		PixelY: py,
	}
	pos.InBounds = f.Size.Contains(pos.Cell())
	if !pos.InBounds {
		c := f.Clamp(pos.Cell())
		pos.GridX, pos.GridY = c.X, c.Y
	}
	return pos
}

// OffsetFor returns the world offset that puts the center of cell under the
// viewport center.
func (f Frame) OffsetFor(cell Cell) Vec {
	return Vec{
		X: f.Center.X - f.Container.X - (float64(cell.X)+0.5)*f.TileW,
		Y: f.Center.Y - f.Container.Y - (float64(cell.Y)+0.5)*f.TileH,
	}
}

// Clamp moves cell into [0,width)x[0,height).
func (f Frame) Clamp(cell Cell) Cell {
	return f.Size.Clamp(cell)
}

func (s Size) Clamp(cell Cell) Cell {
	if !s.Valid() {
		return Cell{}
	}
	return Cell{
		X: min(max(cell.X, 0), s.Width-1),
		Y: min(max(cell.Y, 0), s.Height-1),
	}
}

// TilePixel returns the top-left pixel of a cell inside the layer container.
func (f Frame) TilePixel(cell Cell) Vec {
	return Vec{X: float64(cell.X) * f.TileW, Y: float64(cell.Y) * f.TileH}
}
