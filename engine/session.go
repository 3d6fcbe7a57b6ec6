package engine

import (
	"context"
	"math"
	"time"

	"github.com/milk9111/tileworld/common"
	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/input"
	"github.com/milk9111/tileworld/levels"
	"github.com/milk9111/tileworld/loader"
	"github.com/milk9111/tileworld/prefabs"
	"github.com/milk9111/tileworld/world"
)

// LayerSource is the part of the loader the session drives.
type LayerSource interface {
	SwitchLayer(ctx context.Context, id int) uint64
	Poll() (loader.Result, bool)
	Revert(gen uint64, id int) bool
	Layer(id int) (levels.Layer, bool)
	Asset(kind levels.Kind, id string) (loader.Entry, bool)
	FetchAsset(ctx context.Context, kind levels.Kind, id string) (loader.Entry, error)
	Place(r loader.Result, factory component.SpriteFactory, tileW, tileH float64) []loader.Instance
	Teardown(instances []loader.Instance)
}

type Config struct {
	TileSize float64
	// Center is the viewport point the character is drawn at.
	Center    world.Vec
	Container world.Vec

	WalkSpeed   float64
	SprintSpeed float64

	AnimFPS            float64
	FramesPerDirection int
	SprintFactor       float64

	LockReleaseDelay time.Duration
	Doors            world.DoorTiming

	Character   string
	StartLayer  int
	Start       world.Cell
	StartFacing world.Direction
}

func ConfigFromSpec(spec *prefabs.EngineSpec) Config {
	facing, _ := world.ParseDirection(spec.Start.Facing)
	return Config{
		TileSize:           float64(spec.TileSize),
		Center:             world.Vec{X: common.BaseWidth / 2, Y: common.BaseHeight / 2},
		WalkSpeed:          spec.Movement.WalkSpeed,
		SprintSpeed:        spec.Movement.SprintSpeed,
		AnimFPS:            spec.Animation.FPS,
		FramesPerDirection: spec.Animation.FramesPerDirection,
		SprintFactor:       spec.Animation.SprintFactor,
		LockReleaseDelay:   spec.LockReleaseDelay(),
		Doors: world.DoorTiming{
			Duration:  spec.DoorAnimation(),
			Cooldown:  spec.DoorCooldown(),
			OpenAngle: spec.Doors.OpenAngleDeg * math.Pi / 180,
		},
		Character:   spec.Character,
		StartLayer:  spec.Start.Layer,
		Start:       world.Cell{X: spec.Start.X, Y: spec.Start.Y},
		StartFacing: facing,
	}
}

// pendingSwitch is a cross-layer teleport waiting for its layer.
type pendingSwitch struct {
	generation uint64
	layer      int
	cell       world.Cell
	facing     world.Direction
}

// teleportLock excludes the movement commit while a teleport settles. It is
// released once the delay has passed and a later tick has run.
type teleportLock struct {
	held        bool
	written     bool
	writtenTick uint64
	releaseAt   time.Duration
}

// Session is the state of one running character in one world. All methods
// are meant to be called from the game update goroutine.
type Session struct {
	cfg      Config
	src      LayerSource
	sampler  *input.Sampler
	factory  component.SpriteFactory
	observer Observer
	ctx      context.Context

	ready     bool
	layerID   int
	size      world.Size
	collision *world.CollisionMap
	registry  *world.Registry
	instances []loader.Instance
	byIndex   map[int]loader.Instance

	// collide overrides the collision map lookup.
	collide func(x, y int) bool

	offset    world.Vec
	state     world.CharacterState
	seq       component.Sequence
	lastCell  world.Cell
	published world.CharacterState
	announced bool

	clock   time.Duration
	ticks   uint64
	lock    teleportLock
	pending *pendingSwitch

	character     component.Sprite
	characterMeta levels.SpriteMeta
}

func NewSession(cfg Config, src LayerSource, sampler *input.Sampler, factory component.SpriteFactory, observer Observer) *Session {
	if sampler == nil {
		sampler = input.NewSampler()
	}
	return &Session{
		cfg:      cfg,
		src:      src,
		sampler:  sampler,
		factory:  factory,
		observer: observer,
		ctx:      context.Background(),
		byIndex:  make(map[int]loader.Instance),
	}
}

// Start requests the start layer. The character is placed on the tick the
// layer arrives, under the teleport lock.
func (s *Session) Start(ctx context.Context) {
	if ctx != nil {
		s.ctx = ctx
	}
	if s.cfg.Character != "" {
		go func() {
			_, _ = s.src.FetchAsset(s.ctx, levels.KindObject, s.cfg.Character)
		}()
	}
	gen := s.src.SwitchLayer(s.ctx, s.cfg.StartLayer)
	s.pending = &pendingSwitch{
		generation: gen,
		layer:      s.cfg.StartLayer,
		cell:       s.cfg.Start,
		facing:     s.cfg.StartFacing,
	}
	s.lock = teleportLock{held: true}
	s.sampler.Face(s.cfg.StartFacing)
	s.state.Direction = s.cfg.StartFacing
}

// Retune applies new movement and timing settings. Door timing takes
// effect on the next layer load.
func (s *Session) Retune(cfg Config) {
	cfg.Center, cfg.Container, cfg.TileSize = s.cfg.Center, s.cfg.Container, s.cfg.TileSize
	s.cfg = cfg
}

func (s *Session) frame() world.Frame {
	return world.Frame{
		Center:    s.cfg.Center,
		Size:      s.size,
		TileW:     s.cfg.TileSize,
		TileH:     s.cfg.TileSize,
		Container: s.cfg.Container,
	}
}

func (s *Session) Frame() world.Frame { return s.frame() }
func (s *Session) Ready() bool { return s.ready }
func (s *Session) LayerID() int { return s.layerID }
func (s *Session) Size() world.Size { return s.size }
func (s *Session) Offset() world.Vec { return s.offset }
func (s *Session) State() world.CharacterState { return s.state }
func (s *Session) Clock() time.Duration { return s.clock }
func (s *Session) Locked() bool { return s.lock.held }
func (s *Session) Sampler() *input.Sampler { return s.sampler }
func (s *Session) Registry() *world.Registry { return s.registry }
func (s *Session) Collision() *world.CollisionMap { return s.collision }
func (s *Session) Instances() []loader.Instance { return s.instances }
func (s *Session) Character() component.Sprite { return s.character }
func (s *Session) CharacterMeta() levels.SpriteMeta { return s.characterMeta }
func (s *Session) Config() Config { return s.cfg }
func (s *Session) PendingLayer() (int, bool) {
	if s.pending == nil {
		return 0, false
	}
	return s.pending.layer, true
}
