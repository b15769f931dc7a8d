package solver

import (
	"fmt"

	"github.com/san-kum/flexsim/internal/flex"
)

// Updater drives solvers with a fixed step from variable frame times.
// Leftover time is carried to the next frame and used to interpolate the
// render state.
type Updater struct {
	StepDt           float32
	Substeps         int
	MaxStepsPerFrame int
	// AdvanceWorld moves kinematic colliders before each step.
	AdvanceWorld bool

	solvers     []*Solver
	accumulated float32
}

// NewUpdater returns an updater stepping solvers by stepDt.
func NewUpdater(stepDt float32, substeps int, solvers ...*Solver) *Updater {
	return &Updater{
		StepDt:           stepDt,
		Substeps:         substeps,
		MaxStepsPerFrame: 5,
		solvers:          solvers,
	}
}

// Accumulated returns the simulation time not yet stepped.
func (u *Updater) Accumulated() float32 { return u.accumulated }

// Update consumes frameDt and returns how many steps were taken. When
// more than MaxStepsPerFrame steps are pending, the surplus is dropped so
// a slow frame does not snowball.
func (u *Updater) Update(frameDt float32) (int, error) {
	if u.StepDt <= 0 {
		return 0, fmt.Errorf("%w: step dt %g", flex.ErrInvalidConfig, u.StepDt)
	}
	u.accumulated += flex.Max(frameDt, 0)

	steps := 0
	for u.accumulated >= u.StepDt && (u.MaxStepsPerFrame <= 0 || steps < u.MaxStepsPerFrame) {
		for _, s := range u.solvers {
			if u.AdvanceWorld {
				s.World().Advance(u.StepDt)
			}
			if err := s.Solve(u.StepDt, u.Substeps); err != nil {
				return steps, err
			}
		}
		u.accumulated -= u.StepDt
		steps++
	}
	if u.accumulated >= u.StepDt {
		u.accumulated = flex.Min(u.accumulated, u.StepDt)
	}
	for _, s := range u.solvers {
		s.Interpolate(u.accumulated)
	}
	return steps, nil
}
