// Package scenario builds the demo particle systems used by the CLI,
// benchmarks and tests, and runs them for a configured duration.
package scenario

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/solver"
)

// Scene is a built particle system ready to step.
type Scene struct {
	Name      string
	Config    *config.Config
	Solver    *solver.Solver
	Particles []int
	// Floor is flex.InvalidHandle when the scene has no floor.
	Floor flex.Handle
}

// Builder populates a scene whose solver and floor already exist.
type Builder func(sc *Scene) error

type Registry struct {
	builders map[string]Builder
}

func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	r.builders["rope"] = buildRope
	r.builders["cloth"] = buildCloth
	r.builders["jelly"] = buildJelly
	r.builders["fluid"] = buildFluid
	r.builders["pile"] = buildPile
	return r
}

// Register adds or replaces a builder.
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

func (r *Registry) ListScenarios() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates a solver for cfg and fills it with cfg.Scenario.
func (r *Registry) Build(cfg *config.Config, opts ...solver.Option) (*Scene, error) {
	fn, ok := r.builders[cfg.Scenario]
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s", cfg.Scenario)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params, err := cfg.SolverParameters()
	if err != nil {
		return nil, err
	}
	cparams, err := cfg.ConstraintParameters()
	if err != nil {
		return nil, err
	}

	s, err := solver.New(params, collider.NewWorld(), opts...)
	if err != nil {
		return nil, err
	}
	for t, p := range cparams {
		if err := s.SetConstraintParameters(flex.ConstraintType(t), p); err != nil {
			return nil, err
		}
	}

	sc := &Scene{Name: cfg.Scenario, Config: cfg, Solver: s, Floor: flex.InvalidHandle}
	if cfg.Scene.Floor {
		if err := sc.addFloor(); err != nil {
			return nil, err
		}
	}
	if err := fn(sc); err != nil {
		return nil, fmt.Errorf("build %s: %w", cfg.Scenario, err)
	}
	return sc, nil
}

func (sc *Scene) addFloor() error {
	w := sc.Solver.World()
	d := collider.BoxDesc(mgl32.Vec3{0, -0.5, 0}, mgl32.Vec3{40, 1, 40})
	d.Material = w.AddMaterial(flex.CollisionMaterial{
		DynamicFriction: 0.3,
		StaticFriction:  0.4,
		RollingFriction: 0.05,
		RollingContacts: true,
	})
	h, err := w.AddCollider(d, geometry.Identity())
	if err != nil {
		return err
	}
	sc.Floor = h
	return nil
}
