package main

import (
	"context"
	"fmt"

	"github.com/milk9111/tileworld/backend"
	"github.com/milk9111/tileworld/world"
)

// pathBudget bounds each reachability search.
const pathBudget = 1 << 16

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Problem struct {
	Severity Severity
	Layer    int
	Cell     world.Cell
	Message  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: layer %d (%d,%d): %s", p.Severity, p.Layer, p.Cell.X, p.Cell.Y, p.Message)
}

type layerData struct {
	size      world.Size
	objects   []world.PlacedObject
	collision *world.CollisionMap
	registry  *world.Registry
}

// walkable treats doors as passable since they can be opened.
func (l *layerData) walkable(c world.Cell) bool {
	if !l.collision.Has(c.X, c.Y) {
		return true
	}
	for _, o := range l.registry.ObjectsAt(c.X, c.Y) {
		if o.Collision && !o.Door {
			return false
		}
	}
	return true
}

func (l *layerData) teleporters() []world.PlacedObject {
	var out []world.PlacedObject
	for _, o := range l.objects {
		if o.Action != nil && o.Action.Type == world.ActionTeleport {
			out = append(out, o)
		}
	}
	return out
}

// Start is the spawn point to validate alongside the teleporters.
type Start struct {
	Layer int
	Cell  world.Cell
}

// Check loads every layer and reports teleport destinations and spawn
// points that would strand the character.
func Check(ctx context.Context, client backend.Client, start *Start) ([]Problem, error) {
	descs, err := client.ListLayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("levelcheck: list layers: %w", err)
	}

	var problems []Problem
	layers := make(map[int]*layerData, len(descs))
	for _, d := range descs {
		if !d.Valid() {
			problems = append(problems, Problem{Severity: SeverityError, Layer: d.Layer, Message: fmt.Sprintf("invalid size %dx%d", d.Width, d.Height)})
			continue
		}
		placements, err := client.ListPlacements(ctx, d.Layer)
		if err != nil {
			return nil, fmt.Errorf("levelcheck: layer %d placements: %w", d.Layer, err)
		}
		data := &layerData{size: world.Size{Width: d.Width, Height: d.Height}}
		for i, p := range placements {
			obj, err := world.FromPlacement(i, p)
			if err != nil {
				problems = append(problems, Problem{Severity: SeverityError, Layer: d.Layer, Cell: world.Cell{X: p.X, Y: p.Y}, Message: err.Error()})
				continue
			}
			if !data.size.Contains(obj.Cell) {
				problems = append(problems, Problem{Severity: SeverityWarning, Layer: d.Layer, Cell: obj.Cell, Message: fmt.Sprintf("%s placed outside the layer", obj.ID)})
			}
			data.objects = append(data.objects, obj)
		}
		data.collision = world.BuildCollisionMap(data.objects)
		data.registry = world.NewRegistry(data.objects, data.collision, world.DoorTiming{})
		layers[d.Layer] = data
	}

	if start != nil {
		problems = append(problems, checkArrival(layers, start.Layer, start.Cell, start.Layer, start.Cell, "spawn")...)
	}
	for id, data := range layers {
		for _, tp := range data.teleporters() {
			dest := tp.Action.Destination
			target := id
			if dest.ChangeLayer {
				target = dest.Layer
			}
			what := fmt.Sprintf("%s destination (%d,%d) on layer %d", tp.ID, dest.X, dest.Y, target)
			problems = append(problems, checkArrival(layers, id, tp.Cell, target, world.Cell{X: dest.X, Y: dest.Y}, what)...)
		}
	}
	return problems, nil
}

func checkArrival(layers map[int]*layerData, fromLayer int, from world.Cell, layer int, cell world.Cell, what string) []Problem {
	data, ok := layers[layer]
	if !ok {
		return []Problem{{Severity: SeverityError, Layer: fromLayer, Cell: from, Message: what + ": unknown layer"}}
	}
	if !data.size.Contains(cell) {
		clamped := data.size.Clamp(cell)
		return []Problem{{Severity: SeverityWarning, Layer: fromLayer, Cell: from, Message: fmt.Sprintf("%s: out of bounds, clamps to (%d,%d)", what, clamped.X, clamped.Y)}}
	}
	if !data.walkable(cell) {
		return []Problem{{Severity: SeverityError, Layer: fromLayer, Cell: from, Message: what + ": lands on a blocked cell"}}
	}

	exits := data.teleporters()
	if len(exits) == 0 {
		return nil
	}
	blocked := func(c world.Cell) bool { return !data.walkable(c) }
	for _, exit := range exits {
		if exit.Cell == cell {
			continue
		}
		if world.FindPath(data.size, cell, exit.Cell, blocked, pathBudget) != nil {
			return nil
		}
	}
	return []Problem{{Severity: SeverityWarning, Layer: fromLayer, Cell: from, Message: what + ": no teleporter reachable after arrival"}}
}
