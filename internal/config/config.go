package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/flexsim/internal/flex"
)

const (
	DefaultDt       = 1.0 / 60
	DefaultDuration = 5.0
	DefaultSubsteps = 4
	DefaultCount    = 16
	DefaultSpacing  = 0.1
	DefaultRadius   = 0.05
)

type Config struct {
	Scenario string         `yaml:"scenario" toml:"scenario"`
	Dt       float64        `yaml:"dt" toml:"dt"`
	Duration float64        `yaml:"duration" toml:"duration"`
	Substeps int            `yaml:"substeps" toml:"substeps"`
	Seed     int64          `yaml:"seed" toml:"seed"`
	Solver   SolverConfig   `yaml:"solver" toml:"solver"`
	Scene    ScenarioConfig `yaml:"scene" toml:"scene"`
	// Constraints overrides per-type parameters, keyed by type name.
	Constraints map[string]ConstraintConfig `yaml:"constraints,omitempty" toml:"constraints,omitempty"`
}

type SolverConfig struct {
	Mode             string     `yaml:"mode" toml:"mode"`
	Interpolation    string     `yaml:"interpolation" toml:"interpolation"`
	Gravity          [3]float32 `yaml:"gravity" toml:"gravity"`
	Damping          float32    `yaml:"damping" toml:"damping"`
	SleepThreshold   float32    `yaml:"sleep_threshold" toml:"sleep_threshold"`
	SleepSteps       int        `yaml:"sleep_steps" toml:"sleep_steps"`
	CollisionMargin  float32    `yaml:"collision_margin" toml:"collision_margin"`
	MaxDepenetration float32    `yaml:"max_depenetration" toml:"max_depenetration"`
	CCD              float32    `yaml:"ccd" toml:"ccd"`
	ShockPropagation float32    `yaml:"shock_propagation" toml:"shock_propagation"`
	MaxBatches       int        `yaml:"max_batches" toml:"max_batches"`
	ParticleCapacity int        `yaml:"particle_capacity" toml:"particle_capacity"`
}

type ScenarioConfig struct {
	Count      int     `yaml:"count" toml:"count"`
	Spacing    float32 `yaml:"spacing" toml:"spacing"`
	Radius     float32 `yaml:"radius" toml:"radius"`
	Compliance float32 `yaml:"compliance" toml:"compliance"`
	Height     float32 `yaml:"height" toml:"height"`
	Floor      bool    `yaml:"floor" toml:"floor"`
	// Wind is the air velocity felt by aerodynamic particles.
	Wind [3]float32 `yaml:"wind" toml:"wind"`
}

type ConstraintConfig struct {
	Enabled    *bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Order      string  `yaml:"order,omitempty" toml:"order,omitempty"`
	Iterations int     `yaml:"iterations,omitempty" toml:"iterations,omitempty"`
	SOR        float32 `yaml:"sor,omitempty" toml:"sor,omitempty"`
}

func DefaultConfig() *Config {
	p := flex.DefaultSolverParameters()
	return &Config{
		Scenario: "rope",
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Substeps: DefaultSubsteps,
		Solver: SolverConfig{
			Mode:             p.Mode.String(),
			Interpolation:    "none",
			Gravity:          [3]float32(p.Gravity),
			Damping:          p.Damping,
			SleepThreshold:   p.SleepThreshold,
			SleepSteps:       p.SleepSteps,
			CollisionMargin:  p.CollisionMargin,
			MaxDepenetration: p.MaxDepenetration,
			CCD:              p.ContinuousCollisionDetection,
			ShockPropagation: p.ShockPropagation,
			MaxBatches:       p.MaxBatches,
			ParticleCapacity: p.ParticleCapacity,
		},
		Scene: ScenarioConfig{
			Count:   DefaultCount,
			Spacing: DefaultSpacing,
			Radius:  DefaultRadius,
			Height:  1,
			Floor:   true,
		},
	}
}

// Load reads a yaml or toml file, chosen by extension, over the defaults.
// Unknown toml keys are an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("%w: unknown config keys [%s]", flex.ErrInvalidConfig, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", flex.ErrInvalidConfig, ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks run settings and everything the solver would reject.
func (c *Config) Validate() error {
	switch {
	case c.Dt <= 0:
		return fmt.Errorf("%w: dt %g <= 0", flex.ErrInvalidConfig, c.Dt)
	case c.Duration < 0:
		return fmt.Errorf("%w: duration %g < 0", flex.ErrInvalidConfig, c.Duration)
	case c.Substeps < 1:
		return fmt.Errorf("%w: substeps %d < 1", flex.ErrInvalidConfig, c.Substeps)
	case c.Scene.Count < 1:
		return fmt.Errorf("%w: scene count %d < 1", flex.ErrInvalidConfig, c.Scene.Count)
	case c.Scene.Radius <= 0:
		return fmt.Errorf("%w: particle radius %g <= 0", flex.ErrInvalidConfig, c.Scene.Radius)
	}
	p, err := c.SolverParameters()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	_, err = c.ConstraintParameters()
	return err
}

// Steps is the number of fixed steps covering Duration.
func (c *Config) Steps() int {
	return int(c.Duration/c.Dt + 0.5)
}

// SolverParameters converts the solver section.
func (c *Config) SolverParameters() (flex.SolverParameters, error) {
	s := c.Solver
	p := flex.DefaultSolverParameters()
	switch strings.ToLower(s.Mode) {
	case "", "3d":
		p.Mode = flex.Mode3D
	case "2d":
		p.Mode = flex.Mode2D
	default:
		return p, fmt.Errorf("%w: mode %q", flex.ErrInvalidConfig, s.Mode)
	}
	switch strings.ToLower(s.Interpolation) {
	case "", "none":
		p.Interpolation = flex.InterpolationNone
	case "linear":
		p.Interpolation = flex.InterpolationLinear
	default:
		return p, fmt.Errorf("%w: interpolation %q", flex.ErrInvalidConfig, s.Interpolation)
	}
	p.Gravity = mgl32.Vec3(s.Gravity)
	p.Damping = s.Damping
	p.SleepThreshold = s.SleepThreshold
	p.SleepSteps = s.SleepSteps
	p.CollisionMargin = s.CollisionMargin
	p.MaxDepenetration = s.MaxDepenetration
	p.ContinuousCollisionDetection = s.CCD
	p.ShockPropagation = s.ShockPropagation
	p.MaxBatches = s.MaxBatches
	p.ParticleCapacity = s.ParticleCapacity
	p.SubstepCount = c.Substeps
	return p, nil
}

// ConstraintParameters applies the per-type overrides to the defaults.
func (c *Config) ConstraintParameters() ([flex.ConstraintTypeCount]flex.ConstraintParameters, error) {
	out := flex.DefaultConstraintParameters()
	for name, o := range c.Constraints {
		t, ok := flex.ParseConstraintType(name)
		if !ok {
			return out, fmt.Errorf("%w: unknown constraint type %q", flex.ErrInvalidConfig, name)
		}
		p := &out[t]
		if o.Enabled != nil {
			p.Enabled = *o.Enabled
		}
		switch strings.ToLower(o.Order) {
		case "":
		case "sequential":
			p.EvaluationOrder = flex.Sequential
		case "parallel":
			p.EvaluationOrder = flex.Parallel
		default:
			return out, fmt.Errorf("%w: %s order %q", flex.ErrInvalidConfig, name, o.Order)
		}
		if o.Iterations > 0 {
			p.Iterations = o.Iterations
		}
		if o.SOR > 0 {
			p.SORFactor = o.SOR
		}
		if err := p.Validate(); err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
	}
	return out, nil
}
