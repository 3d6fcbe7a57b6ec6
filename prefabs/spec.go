package prefabs

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const EngineSpecFile = "engine.yaml"

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// EngineSpec holds the tunables of the movement engine and its loader.
type EngineSpec struct {
	Name      string        `yaml:"name"`
	TileSize  int           `yaml:"tile_size"`
	TargetTPS int           `yaml:"target_tps"`
	Character string        `yaml:"character"`
	Start     StartSpec     `yaml:"start"`
	Movement  MovementSpec  `yaml:"movement"`
	Animation AnimationSpec `yaml:"animation"`
	Teleport  TeleportSpec  `yaml:"teleport"`
	Doors     DoorSpec      `yaml:"doors"`
	Loader    LoaderSpec    `yaml:"loader"`
	Backend   BackendSpec   `yaml:"backend"`
}

type StartSpec struct {
	Layer  int    `yaml:"layer"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Facing string `yaml:"facing"`
}

type MovementSpec struct {
	WalkSpeed   float64 `yaml:"walk_speed"`
	SprintSpeed float64 `yaml:"sprint_speed"`
}

type AnimationSpec struct {
	FPS                float64 `yaml:"fps"`
	FramesPerDirection int     `yaml:"frames_per_direction"`
	SprintFactor       float64 `yaml:"sprint_factor"`
}

type TeleportSpec struct {
	LockReleaseDelayMS int `yaml:"lock_release_delay_ms"`
}

type DoorSpec struct {
	AnimationMS  int     `yaml:"animation_ms"`
	CooldownMS   int     `yaml:"cooldown_ms"`
	OpenAngleDeg float64 `yaml:"open_angle_deg"`
}

type LoaderSpec struct {
	BatchSize     int `yaml:"batch_size"`
	BatchDelayMS  int `yaml:"batch_delay_ms"`
	RetryAttempts int `yaml:"retry_attempts"`
	RetryDelayMS  int `yaml:"retry_delay_ms"`
}

type BackendSpec struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// LoadEngineSpec reads engine.yaml (disk first, then embedded) and fills
// defaults for anything left at zero.
func LoadEngineSpec() (*EngineSpec, error) {
	spec, err := LoadSpec[EngineSpec](EngineSpecFile)
	if err != nil {
		return nil, err
	}
	spec.applyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("prefabs: %s: %w", EngineSpecFile, err)
	}
	return &spec, nil
}

func (s *EngineSpec) applyDefaults() {
	if s.TileSize <= 0 {
		s.TileSize = 32
	}
	if s.TargetTPS <= 0 {
		s.TargetTPS = 60
	}
	if s.Start.Facing == "" {
		s.Start.Facing = "down"
	}
	if s.Movement.WalkSpeed <= 0 {
		s.Movement.WalkSpeed = 120
	}
	if s.Movement.SprintSpeed <= 0 {
		s.Movement.SprintSpeed = s.Movement.WalkSpeed * 2
	}
	if s.Animation.FPS <= 0 {
		s.Animation.FPS = 8
	}
	if s.Animation.FramesPerDirection <= 0 {
		s.Animation.FramesPerDirection = 4
	}
	if s.Animation.SprintFactor <= 0 {
		s.Animation.SprintFactor = 1
	}
	if s.Doors.AnimationMS <= 0 {
		s.Doors.AnimationMS = 300
	}
	if s.Doors.OpenAngleDeg == 0 {
		s.Doors.OpenAngleDeg = 90
	}
	if s.Loader.BatchSize <= 0 {
		s.Loader.BatchSize = 4
	}
	if s.Loader.RetryAttempts <= 0 {
		s.Loader.RetryAttempts = 5
	}
	if s.Loader.RetryDelayMS <= 0 {
		s.Loader.RetryDelayMS = 1000
	}
	if s.Backend.TimeoutMS <= 0 {
		s.Backend.TimeoutMS = 5000
	}
	// The lock must outlive at least one tick or a stale movement delta
	// can land on top of the teleport destination.
	if s.Teleport.LockReleaseDelayMS < s.TickMS() {
		s.Teleport.LockReleaseDelayMS = s.TickMS()
	}
}

// Validate reports settings that cannot be defaulted.
func (s *EngineSpec) Validate() error {
	if s.Movement.SprintSpeed < s.Movement.WalkSpeed {
		return fmt.Errorf("sprint_speed %.2f is below walk_speed %.2f", s.Movement.SprintSpeed, s.Movement.WalkSpeed)
	}
	if s.Doors.CooldownMS < 0 || s.Loader.BatchDelayMS < 0 {
		return fmt.Errorf("negative durations are not allowed")
	}
	if s.Start.X < 0 || s.Start.Y < 0 {
		return fmt.Errorf("start cell (%d,%d) is negative", s.Start.X, s.Start.Y)
	}
	return nil
}

// TickMS is the length of one scheduler tick in whole milliseconds, rounded up.
func (s *EngineSpec) TickMS() int {
	if s.TargetTPS <= 0 {
		return 17
	}
	return (1000 + s.TargetTPS - 1) / s.TargetTPS
}

func (s *EngineSpec) TickDuration() time.Duration {
	return time.Second / time.Duration(max(s.TargetTPS, 1))
}

func (s *EngineSpec) LockReleaseDelay() time.Duration {
	return ms(s.Teleport.LockReleaseDelayMS)
}

func (s *EngineSpec) DoorAnimation() time.Duration { return ms(s.Doors.AnimationMS) }
func (s *EngineSpec) DoorCooldown() time.Duration  { return ms(s.Doors.CooldownMS) }
func (s *EngineSpec) BatchDelay() time.Duration    { return ms(s.Loader.BatchDelayMS) }
func (s *EngineSpec) RetryDelay() time.Duration    { return ms(s.Loader.RetryDelayMS) }
func (s *EngineSpec) BackendTimeout() time.Duration {
	return ms(s.Backend.TimeoutMS)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
