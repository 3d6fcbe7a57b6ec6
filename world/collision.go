package world

import (
	"github.com/zyedidia/generic/mapset"
)

// CollisionMap is the set of blocked cells of one layer. A map is built
// whole for each layer load; only door transitions edit it afterwards.
type CollisionMap struct {
	cells mapset.Set[CellKey]
}

func NewCollisionMap() *CollisionMap {
	return &CollisionMap{cells: mapset.New[CellKey]()}
}

// BuildCollisionMap blocks every cell holding a solid object or a door.
// Doors start closed.
func BuildCollisionMap(objs []PlacedObject) *CollisionMap {
	m := NewCollisionMap()
	for _, o := range objs {
		if o.Collision || o.Door {
			m.cells.Put(o.Cell.Key())
		}
	}
	return m
}

// Has reports whether (x,y) is blocked. A nil map blocks nothing, which is
// how a layer that has not finished loading behaves.
func (m *CollisionMap) Has(x, y int) bool {
	if m == nil {
		return false
	}
	return m.cells.Has(Cell{X: x, Y: y}.Key())
}

func (m *CollisionMap) Block(c Cell) {
	if m == nil {
		return
	}
	m.cells.Put(c.Key())
}

func (m *CollisionMap) Clear(c Cell) {
	if m == nil {
		return
	}
	m.cells.Remove(c.Key())
}

func (m *CollisionMap) Len() int {
	if m == nil {
		return 0
	}
	return m.cells.Size()
}
