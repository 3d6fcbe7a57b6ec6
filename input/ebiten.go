package input

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Bindings maps physical keys to sampler keys.
var Bindings = map[ebiten.Key]Key{
	ebiten.KeyW:          KeyUp,
	ebiten.KeyArrowUp:    KeyUp,
	ebiten.KeyS:          KeyDown,
	ebiten.KeyArrowDown:  KeyDown,
	ebiten.KeyA:          KeyLeft,
	ebiten.KeyArrowLeft:  KeyLeft,
	ebiten.KeyD:          KeyRight,
	ebiten.KeyArrowRight: KeyRight,
	ebiten.KeyShiftLeft:  KeySprint,
	ebiten.KeyShiftRight: KeySprint,
}

// EbitenSource feeds ebiten keyboard and focus state into a Sampler. Call
// Poll once per Update, before the scheduler tick.
type EbitenSource struct {
	LockKey     ebiten.Key
	InteractKey []ebiten.Key
	focused     bool
}

func NewEbitenSource() *EbitenSource {
	return &EbitenSource{
		LockKey:     ebiten.KeyL,
		InteractKey: []ebiten.Key{ebiten.KeyE, ebiten.KeySpace},
		focused:     true,
	}
}

func (e *EbitenSource) Poll(s *Sampler) {
	if e == nil || s == nil {
		return
	}

	focused := ebiten.IsFocused()
	if !focused {
		if e.focused {
			s.Blur()
		}
		e.focused = false
		return
	}
	if !e.focused {
		s.Focus()
		e.focused = true
	}

	for phys, k := range Bindings {
		if inpututil.IsKeyJustPressed(phys) {
			s.Press(k)
		}
		if inpututil.IsKeyJustReleased(phys) && !e.otherHeld(phys, k) {
			s.Release(k)
		}
	}

	if inpututil.IsKeyJustPressed(e.LockKey) {
		s.ToggleLock()
	}
	for _, k := range e.InteractKey {
		if inpututil.IsKeyJustPressed(k) {
			s.Interact()
			break
		}
	}
}

// otherHeld reports another physical key bound to k that is still down, so
// releasing W while ArrowUp is held keeps moving up.
func (e *EbitenSource) otherHeld(released ebiten.Key, k Key) bool {
	for phys, bound := range Bindings {
		if phys != released && bound == k && ebiten.IsKeyPressed(phys) {
			return true
		}
	}
	return false
}
