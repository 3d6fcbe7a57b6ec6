package world

import (
	"time"
)

// Registry indexes the interactive objects of one layer by cell. It is
// built once per layer load and swapped, never rebuilt in place.
type Registry struct {
	objects   []PlacedObject
	byCell    map[CellKey][]int
	doors     map[CellKey]*DoorState
	doorOrder []CellKey
	collision *CollisionMap
	timing    DoorTiming
}

// Interaction is the outcome of an interact on one cell.
type Interaction struct {
	Intent      TeleportIntent
	Teleport    bool
	DoorToggled bool
}

func (i Interaction) Handled() bool { return i.Teleport || i.DoorToggled }

// NewRegistry indexes objs. Door transitions edit collision, which should
// be the map built from the same objects.
func NewRegistry(objs []PlacedObject, collision *CollisionMap, timing DoorTiming) *Registry {
	r := &Registry{
		objects:   append([]PlacedObject(nil), objs...),
		byCell:    make(map[CellKey][]int),
		doors:     make(map[CellKey]*DoorState),
		collision: collision,
		timing:    timing,
	}
	for i, o := range r.objects {
		key := o.Cell.Key()
		r.byCell[key] = append(r.byCell[key], i)
		if o.Door {
			if _, exists := r.doors[key]; exists {
				continue
			}
			r.doors[key] = &DoorState{Key: key, Cell: o.Cell, ObjectIndex: o.Index, Phase: DoorClosed}
			r.doorOrder = append(r.doorOrder, key)
		}
	}
	return r
}

// ObjectsAt returns every object on (x,y).
func (r *Registry) ObjectsAt(x, y int) []PlacedObject {
	if r == nil {
		return nil
	}
	idx := r.byCell[Cell{X: x, Y: y}.Key()]
	if len(idx) == 0 {
		return nil
	}
	out := make([]PlacedObject, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.objects[i])
	}
	return out
}

// HandleStepOn returns the teleport intent of the first step-on object at
// (x,y). It never relocates anything itself.
func (r *Registry) HandleStepOn(x, y int) (TeleportIntent, bool) {
	return r.intentAt(x, y, ActivationStepOn)
}

// HandleInteract toggles a door on (x,y) and returns the teleport intent
// of the first interact-activated object there.
func (r *Registry) HandleInteract(x, y int, now time.Duration) Interaction {
	var res Interaction
	if r == nil {
		return res
	}
	if d, ok := r.doors[Cell{X: x, Y: y}.Key()]; ok {
		res.DoorToggled = d.toggle(now)
	}
	res.Intent, res.Teleport = r.intentAt(x, y, ActivationInteract)
	return res
}

func (r *Registry) intentAt(x, y int, activation Activation) (TeleportIntent, bool) {
	if r == nil {
		return TeleportIntent{}, false
	}
	for _, i := range r.byCell[Cell{X: x, Y: y}.Key()] {
		o := r.objects[i]
		if o.Activation != activation || o.Action == nil || o.Action.Type != ActionTeleport {
			continue
		}
		dest := o.Action.Destination
		return TeleportIntent{
			X:           dest.X,
			Y:           dest.Y,
			Layer:       dest.Layer,
			ChangeLayer: dest.ChangeLayer,
			Facing:      dest.Facing,
		}, true
	}
	return TeleportIntent{}, false
}

// Update advances door animations. Collision for a door cell is cleared on
// the tick the door reaches OPEN and restored on the tick it reaches CLOSED.
func (r *Registry) Update(now time.Duration) {
	if r == nil {
		return
	}
	for _, key := range r.doorOrder {
		d := r.doors[key]
		if !d.advance(now, r.timing) {
			continue
		}
		switch d.Phase {
		case DoorOpen:
			if !r.solidAt(key) {
				r.collision.Clear(d.Cell)
			}
		case DoorClosed:
			r.collision.Block(d.Cell)
		}
	}
}

// solidAt reports a non-door solid object sharing the cell.
func (r *Registry) solidAt(key CellKey) bool {
	for _, i := range r.byCell[key] {
		if o := r.objects[i]; o.Collision && !o.Door {
			return true
		}
	}
	return false
}

func (r *Registry) Door(x, y int) (DoorState, bool) {
	if r == nil {
		return DoorState{}, false
	}
	d, ok := r.doors[Cell{X: x, Y: y}.Key()]
	if !ok {
		return DoorState{}, false
	}
	return *d, true
}

// Doors returns a snapshot of every door in placement order.
func (r *Registry) Doors() []DoorState {
	if r == nil {
		return nil
	}
	out := make([]DoorState, 0, len(r.doorOrder))
	for _, key := range r.doorOrder {
		out = append(out, *r.doors[key])
	}
	return out
}

func (r *Registry) Objects() []PlacedObject {
	if r == nil {
		return nil
	}
	return r.objects
}
