package engine

import (
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/input"
	"github.com/milk9111/tileworld/levels"
	"github.com/milk9111/tileworld/loader"
	"github.com/milk9111/tileworld/logger"
	"github.com/milk9111/tileworld/world"
)

const degToRad = math.Pi / 180

// Tick runs one scheduler step of length dt. A panic inside the step is
// logged and swallowed so the game loop keeps running.
func (s *Session) Tick(dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"tick":  s.ticks,
			}).Error("tick failed")
			logger.Log.Debug(string(debug.Stack()))
		}
	}()
	s.tick(dt)
}

func (s *Session) tick(dt time.Duration) {
	s.ticks++
	s.clock += dt
	secs := dt.Seconds()

	s.drain()
	if s.registry != nil {
		s.registry.Update(s.clock)
		s.syncDoors()
	}

	// (1) movement is skipped while unfocused, settling a teleport or
	// before the first layer has arrived.
	moving, sprinting := false, false
	if s.ready && s.sampler.Focused() && !s.lock.held {
		// (2) sample
		intent := s.sampler.Sample(s.cfg.WalkSpeed, s.cfg.SprintSpeed)
		s.state.Direction = intent.Direction
		if intent.Moving {
			moving, sprinting = true, intent.Sprinting
			s.move(intent, secs)
		}
	}
	s.state.Locked = s.sampler.Locked()

	// (6) animation runs even when movement was skipped.
	s.seq = component.Advance(s.seq, component.SequenceParams{
		Moving:             moving,
		Delta:              secs,
		FPS:                s.cfg.AnimFPS,
		FramesPerDirection: s.framesPerDirection(),
		SpeedFactor:        s.speedFactor(sprinting),
	})
	s.state.Moving = moving
	s.state.Sprinting = sprinting
	s.state.Frame = s.seq.Frame

	// (7)
	if s.ready {
		s.refreshState()
	}
	s.ensureCharacter()
	s.updateCharacterSprite()

	if s.ready && !s.lock.held {
		if s.sampler.TakeInteract() {
			s.interact()
		}
		// (8) step-on fires once per cell entered.
		if cell := s.state.Cell(); cell != s.lastCell {
			s.lastCell = cell
			if intent, ok := s.registry.HandleStepOn(cell.X, cell.Y); ok {
				s.forward(intent)
			}
		}
	} else {
		s.sampler.TakeInteract()
	}

	// (9)
	s.publish()
	s.advanceLock()
}

// move applies (3)-(5): locate the candidate position without committing
// it, and commit only if the cell it lands in is free.
func (s *Session) move(intent input.Intent, secs float64) {
	f := s.frame()
	// The world moves opposite to the character.
	candidate := s.offset.Add(world.Vec{X: -intent.VX * secs, Y: -intent.VY * secs})
	cur := f.Locate(s.offset).Cell()
	next := f.Locate(candidate)
	if !next.InBounds {
		return
	}
	if next.Cell() != cur && s.blocked(next.Cell()) {
		return
	}
	s.offset = candidate
}

// blocked checks collision for c. A failing check counts as free.
func (s *Session) blocked(c world.Cell) (hit bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logrus.Fields{"x": c.X, "y": c.Y, "panic": fmt.Sprint(r)}).Warn("collision check failed")
			hit = false
		}
	}()
	if s.collide != nil {
		return s.collide(c.X, c.Y)
	}
	return s.collision.Has(c.X, c.Y)
}

// interact tries the faced cell first, then the character's own cell.
func (s *Session) interact() {
	cell := s.state.Cell()
	for _, c := range []world.Cell{cell.Neighbor(s.state.Direction), cell} {
		res := s.registry.HandleInteract(c.X, c.Y, s.clock)
		if res.Teleport {
			s.forward(res.Intent)
		}
		if res.Handled() {
			return
		}
	}
}

func (s *Session) forward(intent world.TeleportIntent) {
	var layer *int
	if intent.ChangeLayer {
		l := intent.Layer
		layer = &l
	}
	s.Teleport(intent.X, intent.Y, layer, intent.Facing)
}

func (s *Session) refreshState() {
	pos := s.frame().Locate(s.offset)
	s.state.GridX, s.state.GridY = pos.GridX, pos.GridY
	s.state.FracX, s.state.FracY = pos.FracX, pos.FracY
}

func (s *Session) publish() {
	if s.observer == nil || !s.ready {
		return
	}
	st := s.state
	if s.announced &&
		st.GridX == s.published.GridX && st.GridY == s.published.GridY &&
		st.Moving == s.published.Moving && st.Sprinting == s.published.Sprinting {
		return
	}
	s.announced = true
	s.published = st
	s.observer.Publish(st)
}

// drain applies finished layer loads.
func (s *Session) drain() {
	for {
		r, ok := s.src.Poll()
		if !ok {
			return
		}
		s.apply(r)
	}
}

func (s *Session) apply(r loader.Result) {
	log := logger.Log.WithFields(logrus.Fields{"layer": r.Layer.Layer, "generation": r.Generation})
	if r.Err != nil {
		log.WithError(r.Err).Error("layer load failed")
		// Before the first layer is live the start placement stays queued
		// for a later reload.
		if s.ready && s.pending != nil && s.pending.layer == r.Layer.Layer {
			s.pending = nil
			s.lock = teleportLock{}
		}
		if s.ready && r.Layer.Layer != s.layerID {
			s.src.Revert(r.Generation, s.layerID)
		}
		return
	}

	s.src.Teardown(s.instances)
	objs := r.Objects
	collision := world.BuildCollisionMap(objs)
	s.collision = collision
	s.registry = world.NewRegistry(objs, collision, s.cfg.Doors)
	s.size = world.Size{Width: r.Layer.Width, Height: r.Layer.Height}
	s.layerID = r.Layer.Layer
	s.ready = true

	s.instances = s.src.Place(r, s.factory, s.cfg.TileSize, s.cfg.TileSize)
	clear(s.byIndex)
	for _, in := range s.instances {
		s.byIndex[in.Object.Index] = in
	}

	switch {
	case s.pending != nil && s.pending.layer == r.Layer.Layer:
		p := s.pending
		s.pending = nil
		s.lock = teleportLock{held: true}
		s.place(s.size.Clamp(p.cell), p.facing)
		s.writeLock()
	case !s.size.Contains(s.state.Cell()):
		// A reload shrank the layer under the character.
		s.lock = teleportLock{held: true}
		s.place(s.size.Clamp(s.state.Cell()), s.state.Direction)
		s.writeLock()
	default:
		s.refreshState()
	}
	log.WithField("objects", len(objs)).Info("layer live")
}

func (s *Session) syncDoors() {
	for _, d := range s.registry.Doors() {
		in, ok := s.byIndex[d.ObjectIndex]
		if !ok || in.Sprite == nil {
			continue
		}
		in.Sprite.SetRotation(in.Object.Rotation*degToRad + d.Angle)
	}
}

// ensureCharacter creates the character sprite once its sheet is cached.
func (s *Session) ensureCharacter() {
	if s.character != nil || s.factory == nil || s.cfg.Character == "" {
		return
	}
	e, ok := s.src.Asset(levels.KindObject, s.cfg.Character)
	if !ok || e.Texture == nil {
		return
	}
	s.characterMeta = e.Meta
	s.character = s.factory.NewSprite(e.Texture, e.Meta)
	if s.character != nil {
		s.character.SetVisible(true)
	}
}

func (s *Session) updateCharacterSprite() {
	if s.character == nil {
		return
	}
	pos := s.frame().Locate(s.offset)
	s.character.SetPosition(pos.PixelX, pos.PixelY)
	s.character.SetTexture(component.TextureIndex(s.characterMeta, s.state.Direction, s.state.Frame))
}

func (s *Session) framesPerDirection() int {
	if s.characterMeta.FramesPerDirection > 0 {
		return s.characterMeta.FramesPerDirection
	}
	return s.cfg.FramesPerDirection
}

func (s *Session) speedFactor(sprinting bool) float64 {
	if sprinting && s.cfg.SprintFactor > 0 {
		return s.cfg.SprintFactor
	}
	return 1
}
