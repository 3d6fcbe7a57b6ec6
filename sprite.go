package main

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/levels"
)

// Sprite draws one cell of a sprite sheet. Position is in layer pixels.
type Sprite struct {
	sheet *ebiten.Image
	meta  levels.SpriteMeta

	x, y      float64
	rotation  float64
	index     int
	visible   bool
	destroyed bool
}

func (s *Sprite) SetPosition(x, y float64) { s.x, s.y = x, y }
func (s *Sprite) SetTexture(index int)     { s.index = index }
func (s *Sprite) SetRotation(rad float64)  { s.rotation = rad }
func (s *Sprite) SetVisible(v bool)        { s.visible = v }

func (s *Sprite) Destroy() {
	s.destroyed = true
	s.visible = false
}

// Draw renders the sprite shifted by (dx,dy). The sprite pivots, scales and
// rotates around its anchor.
func (s *Sprite) Draw(screen *ebiten.Image, dx, dy float64) {
	if s == nil || s.sheet == nil || !s.visible || s.destroyed {
		return
	}
	fw, fh := s.meta.FrameSize.Width, s.meta.FrameSize.Height
	src := component.SheetCell(s.sheet.Bounds(), fw, fh, s.index)
	frame, ok := s.sheet.SubImage(src).(*ebiten.Image)
	if !ok {
		return
	}

	scale := s.meta.Scale()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-s.meta.Anchor.X*float64(src.Dx()), -s.meta.Anchor.Y*float64(src.Dy()))
	op.GeoM.Scale(scale, scale)
	op.GeoM.Rotate(s.rotation)
	op.GeoM.Translate(s.x+dx, s.y+dy)
	op.Filter = ebiten.FilterNearest
	screen.DrawImage(frame, op)
}

type spriteFactory struct{}

func (spriteFactory) NewSprite(tex component.Texture, meta levels.SpriteMeta) component.Sprite {
	img, ok := tex.(*ebiten.Image)
	if !ok || img == nil {
		return nil
	}
	if b := img.Bounds(); b.Dx() < meta.FrameSize.Width || b.Dy() < meta.FrameSize.Height {
		meta.FrameSize.Width, meta.FrameSize.Height = b.Dx(), b.Dy()
	}
	return &Sprite{sheet: img, meta: meta, visible: true}
}

var _ component.Sprite = (*Sprite)(nil)
