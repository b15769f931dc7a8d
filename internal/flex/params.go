package flex

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Mode selects 3D or planar simulation.
type Mode int

const (
	Mode3D Mode = iota
	Mode2D
)

func (m Mode) String() string {
	if m == Mode2D {
		return "2d"
	}
	return "3d"
}

// Interpolation controls how render copies are produced between steps.
type Interpolation int

const (
	InterpolationNone Interpolation = iota
	InterpolationLinear
)

// EvaluationOrder selects when accumulated deltas of a constraint type are
// committed to particle positions.
type EvaluationOrder int

const (
	// Sequential applies deltas after every batch.
	Sequential EvaluationOrder = iota
	// Parallel applies deltas once after all batches of a type.
	Parallel
)

func (o EvaluationOrder) String() string {
	if o == Parallel {
		return "parallel"
	}
	return "sequential"
}

// MaxBatchCount is the hard batch limit imposed by 16 bit occupancy masks plus
// one leftover batch.
const MaxBatchCount = 17

// SolverParameters holds solver-wide knobs.
type SolverParameters struct {
	Mode                         Mode
	Interpolation                Interpolation
	Gravity                      mgl32.Vec3
	Damping                      float32
	MaxAnisotropy                float32
	SleepThreshold               float32
	SleepSteps                   int
	CollisionMargin              float32
	MaxDepenetration             float32
	ContinuousCollisionDetection float32
	ShockPropagation             float32
	SurfaceCollisionIterations   int
	SurfaceCollisionTolerance    float32
	MaxBatches                   int
	SubstepCount                 int
	ParticleCapacity             int
}

// DefaultSolverParameters returns the stock configuration.
func DefaultSolverParameters() SolverParameters {
	return SolverParameters{
		Mode:                         Mode3D,
		Interpolation:                InterpolationNone,
		Gravity:                      mgl32.Vec3{0, -9.81, 0},
		Damping:                      0,
		MaxAnisotropy:                3,
		SleepThreshold:               0.0005,
		SleepSteps:                   1,
		CollisionMargin:              0.02,
		MaxDepenetration:             10,
		ContinuousCollisionDetection: 1,
		ShockPropagation:             0,
		SurfaceCollisionIterations:   8,
		SurfaceCollisionTolerance:    0.005,
		MaxBatches:                   MaxBatchCount,
		SubstepCount:                 4,
		ParticleCapacity:             1024,
	}
}

// Validate reports the first parameter outside its legal range.
func (p SolverParameters) Validate() error {
	switch {
	case p.SubstepCount < 1:
		return fmt.Errorf("%w: substep count %d < 1", ErrInvalidConfig, p.SubstepCount)
	case p.MaxBatches < 1 || p.MaxBatches > MaxBatchCount:
		return fmt.Errorf("%w: max batches %d not in [1,%d]", ErrInvalidConfig, p.MaxBatches, MaxBatchCount)
	case p.CollisionMargin < 0:
		return fmt.Errorf("%w: collision margin %g < 0", ErrInvalidConfig, p.CollisionMargin)
	case p.SleepThreshold < 0:
		return fmt.Errorf("%w: sleep threshold %g < 0", ErrInvalidConfig, p.SleepThreshold)
	case p.SleepSteps < 1:
		return fmt.Errorf("%w: sleep steps %d < 1", ErrInvalidConfig, p.SleepSteps)
	case p.Damping < 0 || p.Damping > 1:
		return fmt.Errorf("%w: damping %g not in [0,1]", ErrInvalidConfig, p.Damping)
	case p.MaxDepenetration < 0:
		return fmt.Errorf("%w: max depenetration %g < 0", ErrInvalidConfig, p.MaxDepenetration)
	case p.ContinuousCollisionDetection < 0 || p.ContinuousCollisionDetection > 1:
		return fmt.Errorf("%w: ccd %g not in [0,1]", ErrInvalidConfig, p.ContinuousCollisionDetection)
	case p.MaxAnisotropy < 1:
		return fmt.Errorf("%w: max anisotropy %g < 1", ErrInvalidConfig, p.MaxAnisotropy)
	case p.SurfaceCollisionIterations < 1:
		return fmt.Errorf("%w: surface collision iterations %d < 1", ErrInvalidConfig, p.SurfaceCollisionIterations)
	case p.ParticleCapacity < 0:
		return fmt.Errorf("%w: particle capacity %d < 0", ErrInvalidConfig, p.ParticleCapacity)
	}
	return nil
}

// ConstraintParameters tunes one constraint type.
type ConstraintParameters struct {
	Enabled         bool
	EvaluationOrder EvaluationOrder
	Iterations      int
	SORFactor       float32
}

// DefaultConstraintParameters returns parameters for every type, all enabled
// with one iteration and no over-relaxation.
func DefaultConstraintParameters() [ConstraintTypeCount]ConstraintParameters {
	var out [ConstraintTypeCount]ConstraintParameters
	for i := range out {
		out[i] = ConstraintParameters{Enabled: true, EvaluationOrder: Sequential, Iterations: 1, SORFactor: 1}
	}
	// Fluids converge better when all pairs see the same densities.
	out[Density].EvaluationOrder = Parallel
	return out
}

// Validate checks iteration count and relaxation factor.
func (c ConstraintParameters) Validate() error {
	if c.Iterations < 0 {
		return fmt.Errorf("%w: iterations %d < 0", ErrInvalidConfig, c.Iterations)
	}
	if c.SORFactor <= 0 || c.SORFactor > 2 {
		return fmt.Errorf("%w: sor factor %g not in (0,2]", ErrInvalidConfig, c.SORFactor)
	}
	return nil
}
