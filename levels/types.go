package levels

import (
	"errors"
	"fmt"
)

// Kind is the resource family a placement refers to.
type Kind string

const (
	KindObject Kind = "object"
	KindTile   Kind = "tile"
)

// Layer describes one map layer as listed by the backend.
type Layer struct {
	Layer  int `json:"layer"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (l Layer) Valid() bool {
	return l.Width > 0 && l.Height > 0
}

// Placement is one object or tile instance on a layer. Exactly one of ID,
// Object or Tile names the resource; ID is treated as an object id.
type Placement struct {
	ID             string  `json:"id,omitempty"`
	Object         string  `json:"object,omitempty"`
	Tile           string  `json:"tile,omitempty"`
	X              int     `json:"x"`
	Y              int     `json:"y"`
	Rotation       float64 `json:"rotation"`
	Collision      *bool   `json:"collision,omitempty"`
	Door           *bool   `json:"door,omitempty"`
	Action         *Action `json:"action,omitempty"`
	ActivationType string  `json:"activationType,omitempty"`
}

// Resource returns the kind and id the placement refers to.
func (p Placement) Resource() (Kind, string) {
	switch {
	case p.Tile != "":
		return KindTile, p.Tile
	case p.Object != "":
		return KindObject, p.Object
	default:
		return KindObject, p.ID
	}
}

type Action struct {
	Type        string      `json:"type"`
	Destination Destination `json:"destination"`
}

type Destination struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Facing  string `json:"facing,omitempty"`
	LayerID *int   `json:"layerId,omitempty"`
}

type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Anchor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SpriteMeta is the render metadata of one object or tile.
type SpriteMeta struct {
	SpriteSheetURL     string         `json:"spriteSheetUrl"`
	FrameSize          FrameSize      `json:"frameSize"`
	FramesPerDirection int            `json:"framesPerDirection,omitempty"`
	DirectionMap       map[string]int `json:"directionMap,omitempty"`
	RenderScale        float64        `json:"renderScale"`
	Anchor             Anchor         `json:"anchor"`
}

var ErrInvalidMeta = errors.New("levels: invalid sprite metadata")

// Validate reports metadata that cannot be rendered.
func (m SpriteMeta) Validate() error {
	if m.SpriteSheetURL == "" {
		return fmt.Errorf("%w: missing spriteSheetUrl", ErrInvalidMeta)
	}
	if m.FrameSize.Width <= 0 || m.FrameSize.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrInvalidMeta, m.FrameSize.Width, m.FrameSize.Height)
	}
	if m.RenderScale < 0 {
		return fmt.Errorf("%w: negative render scale", ErrInvalidMeta)
	}
	return nil
}

// Scale returns RenderScale, treating zero as 1.
func (m SpriteMeta) Scale() float64 {
	if m.RenderScale == 0 {
		return 1
	}
	return m.RenderScale
}
