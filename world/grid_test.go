package world

import (
	"math"
	"testing"
)

func testFrame(w, h int) Frame {
	return Frame{
		Center:    Vec{X: 640, Y: 360},
		Size:      Size{Width: w, Height: h},
		TileW:     32,
		TileH:     32,
		Container: Vec{X: 12, Y: -8},
	}
}

func TestOffsetForRoundTrip(t *testing.T) {
	f := testFrame(20, 20)
	for y := 0; y < f.Size.Height; y++ {
		for x := 0; x < f.Size.Width; x++ {
			pos := f.Locate(f.OffsetFor(Cell{X: x, Y: y}))
			if !pos.InBounds || pos.GridX != x || pos.GridY != y {
				t.Fatalf("cell (%d,%d) located as %+v", x, y, pos)
			}
			if math.Abs(pos.FracX-0.5) > 1e-9 || math.Abs(pos.FracY-0.5) > 1e-9 {
				t.Fatalf("cell (%d,%d) not centered: frac=(%v,%v)", x, y, pos.FracX, pos.FracY)
			}
		}
	}
}

func TestLocateIsPure(t *testing.T) {
	f := testFrame(10, 10)
	off := f.OffsetFor(Cell{X: 3, Y: 4}).Add(Vec{X: -7.25, Y: 3})
	a := f.Locate(off)
	b := f.Locate(off)
	if a != b {
		t.Fatalf("Locate not deterministic: %+v vs %+v", a, b)
	}
}

func TestLocateOutOfBounds(t *testing.T) {
	f := testFrame(4, 3)
	cases := []struct {
		name string
		cell Cell
		want Cell
	}{
		{"left", Cell{X: -1, Y: 1}, Cell{X: 0, Y: 1}},
		{"right", Cell{X: 4, Y: 1}, Cell{X: 3, Y: 1}},
		{"below", Cell{X: 2, Y: 9}, Cell{X: 2, Y: 2}},
		{"corner", Cell{X: -5, Y: -5}, Cell{X: 0, Y: 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pos := f.Locate(f.OffsetFor(c.cell))
			if pos.InBounds {
				t.Fatalf("expected out of bounds for %+v", c.cell)
			}
			if pos.Cell() != c.want {
				t.Fatalf("expected clamp to %+v, got %+v", c.want, pos.Cell())
			}
		})
	}
}

func TestLocateMovementDirection(t *testing.T) {
	f := testFrame(20, 20)
	off := f.OffsetFor(Cell{X: 5, Y: 5})
	// Moving right shifts the world left.
	pos := f.Locate(off.Add(Vec{X: -20}))
	if pos.GridX != 6 || pos.GridY != 5 {
		t.Fatalf("expected (6,5), got (%d,%d)", pos.GridX, pos.GridY)
	}
}

func TestLocateDegenerateFrame(t *testing.T) {
	if pos := (Frame{}).Locate(Vec{}); pos.InBounds {
		t.Fatalf("zero frame must not be in bounds")
	}
}
