package main

import (
	"context"
	"fmt"
	"image/color"
	"sort"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/sirupsen/logrus"

	"github.com/milk9111/tileworld/common"
	"github.com/milk9111/tileworld/engine"
	"github.com/milk9111/tileworld/input"
	"github.com/milk9111/tileworld/levels"
	"github.com/milk9111/tileworld/loader"
	"github.com/milk9111/tileworld/logger"
	"github.com/milk9111/tileworld/prefabs"
	"github.com/milk9111/tileworld/world"
)

var backgroundColor = color.NRGBA{R: 0x18, G: 0x18, B: 0x20, A: 0xff}

type Game struct {
	frames int
	debug  bool
	ctx    context.Context

	spec    *prefabs.EngineSpec
	loader  *loader.Loader
	session *engine.Session
	input   *input.EbitenSource
	status  *StatusUI

	// changes carries paths from the file watcher.
	changes <-chan string
}

func NewGame(ctx context.Context, spec *prefabs.EngineSpec, ld *loader.Loader, changes <-chan string, debug bool) *Game {
	session := engine.NewSession(
		engine.ConfigFromSpec(spec),
		ld,
		input.NewSampler(),
		spriteFactory{},
		engine.ObserverFunc(func(st world.CharacterState) {
			logger.Log.WithFields(logrus.Fields{
				"x":         st.GridX,
				"y":         st.GridY,
				"direction": st.Direction.String(),
				"moving":    st.Moving,
				"sprinting": st.Sprinting,
			}).Debug("character")
		}),
	)
	session.Start(ctx)

	return &Game{
		debug:   debug,
		ctx:     ctx,
		spec:    spec,
		loader:  ld,
		session: session,
		input:   input.NewEbitenSource(),
		status:  NewStatusUI(),
		changes: changes,
	}
}

func (g *Game) Update() error {
	g.frames++

	g.applyChanges()
	g.input.Poll(g.session.Sampler())
	g.session.Tick(g.spec.TickDuration())

	g.status.SetStatus(g.loader.Status().Text(time.Now()))
	g.status.Update()
	return nil
}

// applyChanges handles watcher events on the update goroutine so config and
// level reloads never race the tick.
func (g *Game) applyChanges() {
	for {
		select {
		case path, ok := <-g.changes:
			if !ok {
				g.changes = nil
				return
			}
			g.applyChange(path)
		default:
			return
		}
	}
}

func (g *Game) applyChange(path string) {
	log := logger.Log.WithField("path", path)
	switch {
	case prefabs.IsSpecFile(path):
		spec, err := prefabs.LoadEngineSpec()
		if err != nil {
			log.WithError(err).Warn("config reload rejected")
			return
		}
		g.spec = spec
		g.session.Retune(engine.ConfigFromSpec(spec))
		ebiten.SetTPS(spec.TargetTPS)
		log.Info("config reloaded")
	case prefabs.IsLevelFile(path):
		gen := g.loader.Reload(g.ctx)
		log.WithField("generation", gen).Info("level data reloaded")
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	frame := g.session.Frame()
	offset := g.session.Offset()
	dx := offset.X + frame.Container.X
	dy := offset.Y + frame.Container.Y

	instances := append([]loader.Instance(nil), g.session.Instances()...)
	// Tiles are the floor; objects draw over them.
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].Object.Kind == levels.KindTile && instances[j].Object.Kind != levels.KindTile
	})
	for _, in := range instances {
		if s, ok := in.Sprite.(*Sprite); ok {
			s.Draw(screen, dx, dy)
		}
	}

	if g.debug {
		g.drawCollision(screen, frame, dx, dy)
	}

	if s, ok := g.session.Character().(*Sprite); ok {
		s.Draw(screen, dx, dy)
	} else if g.session.Ready() {
		ebitenutil.DrawRect(screen, frame.Center.X-frame.TileW/4, frame.Center.Y-frame.TileH/4, frame.TileW/2, frame.TileH/2, color.White)
	}

	g.status.Draw(screen)

	if g.debug {
		st := g.session.State()
		ebitenutil.DebugPrint(screen, fmt.Sprintf("Frames: %d    FPS: %.2f", g.frames, ebiten.ActualFPS()))
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("layer %d  cell (%d,%d)  %s  moving=%v sprint=%v lock=%v",
			g.session.LayerID(), st.GridX, st.GridY, st.Direction, st.Moving, st.Sprinting, g.session.Locked()), 0, 16)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("loader layer %d gen %d  clock %s  facing %s  sheet %s",
			g.loader.Active(), g.loader.Generation(), g.session.Clock().Truncate(time.Millisecond),
			g.session.Sampler().Direction(), g.session.CharacterMeta().SpriteSheetURL), 0, 32)
	}
}

func (g *Game) drawCollision(screen *ebiten.Image, frame world.Frame, dx, dy float64) {
	c := g.session.Collision()
	size := g.session.Size()
	tint := color.NRGBA{R: 0xff, G: 0x30, B: 0x30, A: 0x50}
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			if !c.Has(x, y) {
				continue
			}
			p := frame.TilePixel(world.Cell{X: x, Y: y})
			ebitenutil.DrawRect(screen, p.X+dx, p.Y+dy, frame.TileW, frame.TileH, tint)
		}
	}
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return common.BaseWidth, common.BaseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
