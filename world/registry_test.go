package world

import (
	"testing"
	"time"

	"github.com/milk9111/tileworld/levels"
)

func intPtr(i int) *int { return &i }

func TestHandleStepOnTeleporter(t *testing.T) {
	objs := objectsFrom(t, []levels.Placement{
		{Tile: "grass", X: 13, Y: 1},
		{Object: "teleporter", X: 13, Y: 1, Action: &levels.Action{
			Type:        "teleport",
			Destination: levels.Destination{X: 62, Y: 62, Facing: "up"},
		}},
		{Object: "portal", X: 4, Y: 4, Action: &levels.Action{
			Type:        "teleport",
			Destination: levels.Destination{X: 1, Y: 2, Facing: "left", LayerID: intPtr(3)},
		}},
		{Object: "lever", X: 5, Y: 5, ActivationType: "interact", Action: &levels.Action{
			Type:        "teleport",
			Destination: levels.Destination{X: 9, Y: 9},
		}},
	})
	r := NewRegistry(objs, BuildCollisionMap(objs), DoorTiming{})

	cases := []struct {
		name string
		x, y int
		ok   bool
		want TeleportIntent
	}{
		{"same_layer", 13, 1, true, TeleportIntent{X: 62, Y: 62, Facing: DirUp}},
		{"layer_change", 4, 4, true, TeleportIntent{X: 1, Y: 2, Layer: 3, ChangeLayer: true, Facing: DirLeft}},
		{"interact_only", 5, 5, false, TeleportIntent{}},
		{"empty_cell", 0, 0, false, TeleportIntent{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := r.HandleStepOn(c.x, c.y)
			if ok != c.ok || got != c.want {
				t.Fatalf("HandleStepOn(%d,%d) = %+v,%v want %+v,%v", c.x, c.y, got, ok, c.want, c.ok)
			}
		})
	}

	if got := len(r.ObjectsAt(13, 1)); got != 2 {
		t.Fatalf("expected 2 co-located objects, got %d", got)
	}

	res := r.HandleInteract(5, 5, 0)
	if !res.Teleport || res.Intent.X != 9 || res.DoorToggled {
		t.Fatalf("unexpected interact result %+v", res)
	}
}

func TestDoorSequence(t *testing.T) {
	objs := objectsFrom(t, []levels.Placement{
		{Object: "door", X: 3, Y: 3, Door: boolPtr(true)},
	})
	m := BuildCollisionMap(objs)
	timing := DoorTiming{Duration: 300 * time.Millisecond, Cooldown: 100 * time.Millisecond, OpenAngle: 1.5}
	r := NewRegistry(objs, m, timing)

	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	if !m.Has(3, 3) {
		t.Fatalf("closed door must block")
	}

	if res := r.HandleInteract(3, 3, ms(0)); !res.DoorToggled {
		t.Fatalf("first interact should start opening")
	}
	r.Update(ms(150))
	d, _ := r.Door(3, 3)
	if d.Phase != DoorOpening || !d.IsAnimating {
		t.Fatalf("expected opening mid-animation, got %+v", d)
	}
	if !m.Has(3, 3) {
		t.Fatalf("collision must stay until OPEN is reached")
	}
	if d.Angle <= 0 || d.Angle >= timing.OpenAngle {
		t.Fatalf("mid-animation angle out of range: %v", d.Angle)
	}

	if res := r.HandleInteract(3, 3, ms(160)); res.DoorToggled {
		t.Fatalf("interact while animating must be a no-op")
	}

	r.Update(ms(300))
	d, _ = r.Door(3, 3)
	if d.Phase != DoorOpen || !d.IsOpen || m.Has(3, 3) {
		t.Fatalf("expected open with collision cleared, got %+v has=%v", d, m.Has(3, 3))
	}

	if res := r.HandleInteract(3, 3, ms(350)); res.DoorToggled {
		t.Fatalf("interact during cooldown must be a no-op")
	}

	if res := r.HandleInteract(3, 3, ms(400)); !res.DoorToggled {
		t.Fatalf("interact after cooldown should start closing")
	}
	r.Update(ms(550))
	if d, _ = r.Door(3, 3); d.Phase != DoorClosing || m.Has(3, 3) {
		t.Fatalf("collision must stay cleared until CLOSED, got %+v", d)
	}
	r.Update(ms(700))
	d, _ = r.Door(3, 3)
	if d.Phase != DoorClosed || d.IsOpen || !m.Has(3, 3) {
		t.Fatalf("expected closed with collision restored, got %+v", d)
	}
	if d.Angle != 0 {
		t.Fatalf("closed door angle should be 0, got %v", d.Angle)
	}
}

func TestFromPlacementRejectsMissingID(t *testing.T) {
	if _, err := FromPlacement(0, levels.Placement{X: 1}); err == nil {
		t.Fatalf("expected error for placement without id")
	}
}
