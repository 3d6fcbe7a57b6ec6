package world

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/milk9111/tileworld/levels"
)

// Direction is the facing of the character.
type Direction int

const (
	DirDown Direction = iota
	DirUp
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "down"
	}
}

// Step returns the unit cell offset for d.
func (d Direction) Step() (int, int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 1
	}
}

// ParseDirection accepts "up", "down", "left", "right". Anything else is down.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return DirUp, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	case "down":
		return DirDown, true
	default:
		return DirDown, false
	}
}

type Vec struct {
	X, Y float64
}

func (v Vec) Add(o Vec) Vec { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }

// Size is a grid size in tiles.
type Size struct {
	Width, Height int
}

func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

func (s Size) Contains(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < s.Width && c.Y < s.Height
}

type Cell struct {
	X, Y int
}

// CellKey is the "x,y" form of a cell used by the collision set and door table.
type CellKey string

func (c Cell) Key() CellKey {
	return CellKey(strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y))
}

func (c Cell) Neighbor(d Direction) Cell {
	dx, dy := d.Step()
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// Activation selects when an object's action fires.
type Activation string

const (
	ActivationStepOn   Activation = "step_on"
	ActivationInteract Activation = "interact"
)

const ActionTeleport = "teleport"

type Destination struct {
	X, Y   int
	Facing Direction
	// Layer is only meaningful when ChangeLayer is set.
	Layer       int
	ChangeLayer bool
}

type ActionDescriptor struct {
	Type        string
	Destination Destination
}

// PlacedObject is a placement resolved into engine terms. Index is the
// placement's position in the layer listing and doubles as its arena slot.
type PlacedObject struct {
	Index      int
	ID         string
	Kind       levels.Kind
	Cell       Cell
	Rotation   float64
	Collision  bool
	Door       bool
	Action     *ActionDescriptor
	Activation Activation
}

// TeleportIntent is a detected relocation that has not been applied yet.
type TeleportIntent struct {
	X, Y        int
	Layer       int
	ChangeLayer bool
	Facing      Direction
}

// CharacterState is the published view of the character.
type CharacterState struct {
	GridX, GridY int
	FracX, FracY float64
	Direction    Direction
	Moving       bool
	Sprinting    bool
	Locked       bool
	Frame        int
}

func (s CharacterState) Cell() Cell { return Cell{X: s.GridX, Y: s.GridY} }

var ErrBadPlacement = errors.New("world: bad placement")

// FromPlacement converts a wire placement. Unknown action types are dropped
// rather than rejected; a missing resource id is an error.
func FromPlacement(index int, p levels.Placement) (PlacedObject, error) {
	kind, id := p.Resource()
	if id == "" {
		return PlacedObject{}, fmt.Errorf("%w: placement %d has no resource id", ErrBadPlacement, index)
	}
	obj := PlacedObject{
		Index:      index,
		ID:         id,
		Kind:       kind,
		Cell:       Cell{X: p.X, Y: p.Y},
		Rotation:   p.Rotation,
		Collision:  p.Collision != nil && *p.Collision,
		Door:       p.Door != nil && *p.Door,
		Activation: ActivationStepOn,
	}
	if Activation(p.ActivationType) == ActivationInteract {
		obj.Activation = ActivationInteract
	}
	if p.Action != nil && p.Action.Type == ActionTeleport {
		facing, _ := ParseDirection(p.Action.Destination.Facing)
		dest := Destination{X: p.Action.Destination.X, Y: p.Action.Destination.Y, Facing: facing}
		if p.Action.Destination.LayerID != nil {
			dest.Layer = *p.Action.Destination.LayerID
			dest.ChangeLayer = true
		}
		obj.Action = &ActionDescriptor{Type: ActionTeleport, Destination: dest}
	}
	return obj, nil
}
