package loader

import (
	"fmt"
	"time"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseRetrying
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseRetrying:
		return "retrying"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Status is a snapshot of the current layer load, suitable for an overlay.
type Status struct {
	Phase       Phase
	Layer       int
	Generation  uint64
	Loaded      int
	Total       int
	Attempt     int
	MaxAttempts int
	RetryAt     time.Time
	Message     string
}

// Text renders s for display. now is used for the retry countdown.
func (s Status) Text(now time.Time) string {
	switch s.Phase {
	case PhaseLoading:
		if s.Total > 0 {
			return fmt.Sprintf("Loading layer %d: %d/%d", s.Layer, s.Loaded, s.Total)
		}
		return fmt.Sprintf("Loading layer %d", s.Layer)
	case PhaseRetrying:
		wait := max(s.RetryAt.Sub(now), 0)
		return fmt.Sprintf("Layer %d unreachable, retry %d/%d in %.0fs", s.Layer, s.Attempt, s.MaxAttempts, wait.Seconds())
	case PhaseFailed:
		return fmt.Sprintf("Layer %d: %s", s.Layer, s.Message)
	default:
		return ""
	}
}

// Progress is reported once per asset loaded for a layer.
type Progress struct {
	Layer      int
	Generation uint64
	Key        AssetKey
	Loaded     int
	Total      int
}
