package component

import (
	"github.com/milk9111/tileworld/levels"
	"github.com/milk9111/tileworld/world"
)

// Sequence is the walk-cycle state of one animated sprite.
type Sequence struct {
	Elapsed float64
	Frame   int
}

// SequenceParams feed a single Advance step. Delta is seconds since the last
// step; SpeedFactor scales FPS (sprinting plays faster).
type SequenceParams struct {
	Moving             bool
	Delta              float64
	FPS                float64
	FramesPerDirection int
	SpeedFactor        float64
}

// Advance steps the walk cycle. While moving the frame moves forward by one
// once the accumulated time reaches one frame period, and the accumulator
// starts over. A stopped sprite rests on frame 0.
func Advance(seq Sequence, p SequenceParams) Sequence {
	if !p.Moving || p.FramesPerDirection <= 1 || p.FPS <= 0 {
		return Sequence{}
	}
	factor := p.SpeedFactor
	if factor <= 0 {
		factor = 1
	}
	period := 1 / (p.FPS * factor)

	seq.Elapsed += p.Delta
	if seq.Elapsed >= period {
		seq.Elapsed = 0
		seq.Frame = (seq.Frame + 1) % p.FramesPerDirection
	}
	if seq.Frame < 0 || seq.Frame >= p.FramesPerDirection {
		seq.Frame = 0
	}
	return seq
}

// TextureIndex maps a facing and walk frame to a cell index in the sheet.
// Each direction owns a row of framesPerDirection cells; directions missing
// from the map fall back to row 0.
func TextureIndex(meta levels.SpriteMeta, dir world.Direction, frame int) int {
	frames := meta.FramesPerDirection
	if frames <= 0 {
		frames = 1
	}
	row := meta.DirectionMap[dir.String()]
	if row < 0 {
		row = 0
	}
	if frame < 0 || frame >= frames {
		frame = 0
	}
	return row*frames + frame
}
