package input

import (
	"math"
	"testing"

	"github.com/milk9111/tileworld/world"
)

func TestSampleSpeedNeverExceedsAxisSpeed(t *testing.T) {
	const walk, sprint = 120.0, 240.0
	const eps = 1e-9

	// Every combination of the five keys.
	for mask := 0; mask < 1<<keyCount; mask++ {
		s := NewSampler()
		for k := Key(0); k < keyCount; k++ {
			if mask&(1<<k) != 0 {
				s.Press(k)
			}
		}
		in := s.Sample(walk, sprint)
		speed := walk
		if in.Sprinting {
			speed = sprint
		}
		if got := math.Hypot(in.VX, in.VY); got > speed+eps {
			t.Fatalf("mask %05b: speed %v exceeds %v", mask, got, speed)
		}
		if in.Moving != (in.VX != 0 || in.VY != 0) {
			t.Fatalf("mask %05b: moving flag %v disagrees with velocity (%v,%v)", mask, in.Moving, in.VX, in.VY)
		}
	}
}

func TestSampleDirections(t *testing.T) {
	cases := []struct {
		name   string
		keys   []Key
		dir    world.Direction
		moving bool
	}{
		{"right", []Key{KeyRight}, world.DirRight, true},
		{"up", []Key{KeyUp}, world.DirUp, true},
		{"diagonal_prefers_horizontal", []Key{KeyUp, KeyLeft}, world.DirLeft, true},
		{"opposites_cancel", []Key{KeyLeft, KeyRight}, world.DirDown, false},
		{"sprint_alone", []Key{KeySprint}, world.DirDown, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := NewSampler()
			for _, k := range c.keys {
				s.Press(k)
			}
			in := s.Sample(100, 200)
			if in.Direction != c.dir || in.Moving != c.moving {
				t.Fatalf("got dir=%s moving=%v, want dir=%s moving=%v", in.Direction, in.Moving, c.dir, c.moving)
			}
			if got := s.Direction(); got != c.dir {
				t.Fatalf("remembered direction %s, want %s", got, c.dir)
			}
		})
	}
}

func TestSprintScalesSpeed(t *testing.T) {
	s := NewSampler()
	s.Press(KeyRight)
	s.Press(KeySprint)
	in := s.Sample(100, 250)
	if !in.Sprinting || in.VX != 250 {
		t.Fatalf("expected sprint velocity 250, got %+v", in)
	}
}

func TestPressIgnoresRepeat(t *testing.T) {
	s := NewSampler()
	if !s.Press(KeyUp) {
		t.Fatalf("first press should register")
	}
	if s.Press(KeyUp) {
		t.Fatalf("repeat press should be ignored")
	}
	s.Release(KeyUp)
	if s.Pressed(KeyUp) {
		t.Fatalf("key should be released")
	}
}

func TestBlurResetsKeys(t *testing.T) {
	s := NewSampler()
	s.Press(KeyRight)
	s.Press(KeySprint)
	s.Interact()
	s.Blur()

	if s.Focused() {
		t.Fatalf("sampler should be unfocused after blur")
	}
	s.Focus()
	if in := s.Sample(100, 200); in.Moving || in.Sprinting {
		t.Fatalf("keys should not survive a blur: %+v", in)
	}
	if s.TakeInteract() {
		t.Fatalf("interact latch should not survive a blur")
	}
}

func TestLockFreezesMovementKeepsDirection(t *testing.T) {
	s := NewSampler()
	s.Press(KeyLeft)
	s.Sample(100, 200)
	s.ToggleLock()

	in := s.Sample(100, 200)
	if in.Moving || in.VX != 0 || !in.Locked || in.Direction != world.DirLeft {
		t.Fatalf("unexpected locked intent %+v", in)
	}

	s.ToggleLock()
	if in := s.Sample(100, 200); !in.Moving {
		t.Fatalf("held key should move again after unlock")
	}
}

func TestInteractLatch(t *testing.T) {
	s := NewSampler()
	s.Interact()
	if !s.TakeInteract() {
		t.Fatalf("expected latched interact")
	}
	if s.TakeInteract() {
		t.Fatalf("latch should clear after take")
	}
}
