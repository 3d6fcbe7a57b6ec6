package world

import (
	"time"

	"github.com/milk9111/tileworld/common"
)

type DoorPhase int

const (
	DoorClosed DoorPhase = iota
	DoorOpening
	DoorOpen
	DoorClosing
)

func (p DoorPhase) String() string {
	switch p {
	case DoorOpening:
		return "opening"
	case DoorOpen:
		return "open"
	case DoorClosing:
		return "closing"
	default:
		return "closed"
	}
}

// DoorTiming configures every door of a registry.
type DoorTiming struct {
	Duration time.Duration
	Cooldown time.Duration
	// OpenAngle is the extra rotation, in radians, of a fully open door.
	OpenAngle float64
}

// DoorState is the state machine of one door, keyed by its cell. The
// sprite is found through ObjectIndex, never through a pointer.
type DoorState struct {
	Key           CellKey
	Cell          Cell
	ObjectIndex   int
	Phase         DoorPhase
	IsOpen        bool
	IsAnimating   bool
	CooldownUntil time.Duration
	// Angle is the current rotation on top of the placement rotation.
	Angle float64

	startedAt time.Duration
}

// toggle starts an animation towards the opposite state. It refuses while
// animating or cooling down.
func (d *DoorState) toggle(now time.Duration) bool {
	if d.IsAnimating || now < d.CooldownUntil {
		return false
	}
	d.IsAnimating = true
	d.startedAt = now
	if d.IsOpen {
		d.Phase = DoorClosing
	} else {
		d.Phase = DoorOpening
	}
	return true
}

// advance moves the animation to now. It reports true on the call that
// lands on OPEN or CLOSED.
func (d *DoorState) advance(now time.Duration, timing DoorTiming) bool {
	if !d.IsAnimating {
		return false
	}

	t := 1.0
	if timing.Duration > 0 {
		t = float64(now-d.startedAt) / float64(timing.Duration)
	}
	eased := common.EaseInOutCubic(t)
	if d.Phase == DoorOpening {
		d.Angle = common.Lerp(0, timing.OpenAngle, eased)
	} else {
		d.Angle = common.Lerp(timing.OpenAngle, 0, eased)
	}
	if t < 1 {
		return false
	}

	d.IsAnimating = false
	d.CooldownUntil = now + timing.Cooldown
	if d.Phase == DoorOpening {
		d.Phase = DoorOpen
		d.IsOpen = true
		d.Angle = timing.OpenAngle
	} else {
		d.Phase = DoorClosed
		d.IsOpen = false
		d.Angle = 0
	}
	return true
}
