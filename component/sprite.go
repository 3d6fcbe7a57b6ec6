package component

import (
	"image"

	"github.com/milk9111/tileworld/levels"
)

// Texture is a loaded sprite sheet. *ebiten.Image satisfies it.
type Texture interface {
	Bounds() image.Rectangle
}

// Sprite is a drawable instance of a texture. Positions are in world pixels
// relative to the layer origin; rotation is in radians.
type Sprite interface {
	SetPosition(x, y float64)
	SetTexture(index int)
	SetRotation(rad float64)
	SetVisible(visible bool)
	Destroy()
}

// SpriteFactory creates sprites for cached textures.
type SpriteFactory interface {
	NewSprite(tex Texture, meta levels.SpriteMeta) Sprite
}

// SheetCell returns the source rectangle of cell index on a sheet of
// frameW x frameH cells laid out left-to-right, top-to-bottom.
func SheetCell(bounds image.Rectangle, frameW, frameH, index int) image.Rectangle {
	if frameW <= 0 || frameH <= 0 {
		return bounds
	}
	cols := bounds.Dx() / frameW
	rows := bounds.Dy() / frameH
	if cols <= 0 || rows <= 0 {
		return bounds
	}
	if index < 0 || index >= cols*rows {
		index = 0
	}
	sx := bounds.Min.X + (index%cols)*frameW
	sy := bounds.Min.Y + (index/cols)*frameH
	return image.Rect(sx, sy, sx+frameW, sy+frameH)
}
