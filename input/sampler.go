package input

import (
	"math"

	"github.com/milk9111/tileworld/world"
)

// Key is a logical movement key.
type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	KeySprint
	keyCount
)

// Intent is the movement requested for one tick, in pixels per second.
type Intent struct {
	VX, VY    float64
	Moving    bool
	Direction world.Direction
	Locked    bool
	Sprinting bool
}

// Sampler tracks pressed keys between ticks and turns them into an Intent.
type Sampler struct {
	pressed   [keyCount]bool
	locked    bool
	unfocused bool
	interact  bool
	last      world.Direction
}

func NewSampler() *Sampler {
	return &Sampler{}
}

// Press records a key going down. A press of a key that is already down is
// a key-repeat and is ignored; Press reports whether it changed anything.
func (s *Sampler) Press(k Key) bool {
	if s == nil || k < 0 || k >= keyCount || s.pressed[k] {
		return false
	}
	s.pressed[k] = true
	return true
}

func (s *Sampler) Release(k Key) {
	if s == nil || k < 0 || k >= keyCount {
		return
	}
	s.pressed[k] = false
}

func (s *Sampler) Pressed(k Key) bool {
	if s == nil || k < 0 || k >= keyCount {
		return false
	}
	return s.pressed[k]
}

// Blur drops every pressed key. Called when the window loses focus or is
// hidden, since the matching key-up events will never arrive.
func (s *Sampler) Blur() {
	if s == nil {
		return
	}
	s.pressed = [keyCount]bool{}
	s.interact = false
	s.unfocused = true
}

func (s *Sampler) Focus() {
	if s == nil {
		return
	}
	s.unfocused = false
}

func (s *Sampler) Focused() bool {
	return s != nil && !s.unfocused
}

func (s *Sampler) ToggleLock() {
	if s == nil {
		return
	}
	s.locked = !s.locked
}

func (s *Sampler) Locked() bool {
	return s != nil && s.locked
}

// Interact latches an interact request until TakeInteract consumes it.
func (s *Sampler) Interact() {
	if s == nil || s.unfocused {
		return
	}
	s.interact = true
}

func (s *Sampler) TakeInteract() bool {
	if s == nil || !s.interact {
		return false
	}
	s.interact = false
	return true
}

// Direction is the last direction moved in.
func (s *Sampler) Direction() world.Direction {
	if s == nil {
		return world.DirDown
	}
	return s.last
}

// Face overrides the remembered direction, used after a teleport.
func (s *Sampler) Face(d world.Direction) {
	if s == nil {
		return
	}
	s.last = d
}

// Sample converts the pressed keys into an Intent. The combined speed never
// exceeds the single-axis speed.
func (s *Sampler) Sample(walkSpeed, sprintSpeed float64) Intent {
	if s == nil {
		return Intent{}
	}
	if s.locked {
		return Intent{Direction: s.last, Locked: true}
	}

	var ax, ay float64
	if s.pressed[KeyLeft] {
		ax--
	}
	if s.pressed[KeyRight] {
		ax++
	}
	if s.pressed[KeyUp] {
		ay--
	}
	if s.pressed[KeyDown] {
		ay++
	}

	sprinting := s.pressed[KeySprint]
	if ax == 0 && ay == 0 {
		return Intent{Direction: s.last, Sprinting: sprinting}
	}

	speed := walkSpeed
	if sprinting {
		speed = sprintSpeed
	}
	mag := math.Hypot(ax, ay)

	switch {
	case ax < 0:
		s.last = world.DirLeft
	case ax > 0:
		s.last = world.DirRight
	case ay < 0:
		s.last = world.DirUp
	default:
		s.last = world.DirDown
	}

	return Intent{
		VX:        ax / mag * speed,
		VY:        ay / mag * speed,
		Moving:    true,
		Direction: s.last,
		Sprinting: sprinting,
	}
}
