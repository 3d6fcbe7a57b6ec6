package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/logger"
	"github.com/milk9111/tileworld/world"
)

var ErrTeleport = errors.New("engine: teleport refused")

// Teleport moves the character to (x,y), clamped into the destination
// layer. A nil layer, or the current one, stays on this layer. It returns
// false without touching any state when the world is not loaded, the layer
// is unknown or another teleport is still settling.
func (s *Session) Teleport(x, y int, layer *int, facing world.Direction) bool {
	if err := s.teleport(x, y, layer, facing); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{"x": x, "y": y}).Debug("teleport")
		return false
	}
	return true
}

func (s *Session) teleport(x, y int, layer *int, facing world.Direction) error {
	if !s.ready || !s.size.Valid() {
		return fmt.Errorf("%w: world not loaded", ErrTeleport)
	}
	if s.lock.held {
		return fmt.Errorf("%w: lock held", ErrTeleport)
	}

	target := world.Cell{X: x, Y: y}
	if layer == nil || *layer == s.layerID {
		s.lock = teleportLock{held: true}
		s.place(s.size.Clamp(target), facing)
		s.writeLock()
		return nil
	}

	desc, ok := s.src.Layer(*layer)
	if !ok || !desc.Valid() {
		return fmt.Errorf("%w: unknown layer %d", ErrTeleport, *layer)
	}
	size := world.Size{Width: desc.Width, Height: desc.Height}

	// The offset is written by the tick that swaps the layer in.
	s.lock = teleportLock{held: true}
	gen := s.src.SwitchLayer(s.ctx, *layer)
	s.pending = &pendingSwitch{
		generation: gen,
		layer:      *layer,
		cell:       size.Clamp(target),
		facing:     facing,
	}
	s.state.Moving = false
	s.state.Sprinting = false
	s.seq = component.Sequence{}
	s.state.Frame = 0
	logger.Log.WithFields(logrus.Fields{"layer": *layer, "generation": gen}).Info("teleport queued for layer switch")
	return nil
}

// place writes the offset for cell and settles the character there. Only
// called with the lock held.
func (s *Session) place(cell world.Cell, facing world.Direction) {
	s.offset = s.frame().OffsetFor(cell)
	s.sampler.Face(facing)
	s.seq = component.Sequence{}
	s.state.Direction = facing
	s.state.Moving = false
	s.state.Sprinting = false
	s.state.Frame = 0
	s.refreshState()
	s.lastCell = s.state.Cell()
	s.updateCharacterSprite()
}

func (s *Session) writeLock() {
	s.lock.written = true
	s.lock.writtenTick = s.ticks
	s.lock.releaseAt = s.clock + s.cfg.LockReleaseDelay
}

// advanceLock runs at the end of a tick.
func (s *Session) advanceLock() {
	if !s.lock.held || !s.lock.written {
		return
	}
	if s.ticks > s.lock.writtenTick && s.clock >= s.lock.releaseAt {
		s.lock = teleportLock{}
	}
}
