package engine

import "github.com/milk9111/tileworld/world"

// Observer receives the character state whenever its cell, moving flag or
// sprint flag changes.
type Observer interface {
	Publish(state world.CharacterState)
}

type ObserverFunc func(world.CharacterState)

func (f ObserverFunc) Publish(state world.CharacterState) { f(state) }

// ChanObserver delivers states on a channel. A full channel drops the
// state instead of stalling the tick.
type ChanObserver chan world.CharacterState

func (c ChanObserver) Publish(state world.CharacterState) {
	select {
	case c <- state:
	default:
	}
}
