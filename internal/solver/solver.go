package solver

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/san-kum/flexsim/internal/collider"
	"github.com/san-kum/flexsim/internal/constraints"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/geometry"
	"github.com/san-kum/flexsim/internal/particles"
)

// Solver advances one particle system through fixed steps.
type Solver struct {
	params flex.SolverParameters
	world  *collider.World
	log    *zap.Logger
	warn   *rate.Limiter

	particles *particles.Data
	set       *constraints.Set

	// simplices follow the active particles until SetSimplices is called
	simplices     []int
	counts        contacts.SimplexCounts
	autoSimplices bool
	simplexDirty  bool

	triangles []int

	particleGrid *contacts.ParticleGrid
	colliderGrid *contacts.ColliderGrid
	// collider transforms at the end of the previous step
	prevTransforms []geometry.AffineTransform

	frame InertialFrame

	observers []Observer
	stage     Stage
	steps     int64
	lastDt    float32
	counters  constraints.Stats
	last      Stats
	destroyed bool
}

// New returns a solver over world. A nil world is replaced by an empty one.
func New(params flex.SolverParameters, world *collider.World, opts ...Option) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if world == nil {
		world = collider.NewWorld()
	}
	data := particles.NewData(params.ParticleCapacity)
	s := &Solver{
		params:        params,
		world:         world,
		log:           zap.NewNop(),
		warn:          rate.NewLimiter(rate.Every(time.Second), 1),
		particles:     data,
		set:           constraints.NewSet(data, params.MaxBatches),
		autoSimplices: true,
		particleGrid:  contacts.NewParticleGrid(),
		colliderGrid:  contacts.NewColliderGrid(),
		frame:         newInertialFrame(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("solver")
	s.log.Debug("created",
		zap.Stringer("mode", params.Mode),
		zap.Int("substeps", params.SubstepCount),
		zap.Int("max_batches", params.MaxBatches))
	return s, nil
}

// Parameters returns the solver-wide parameters.
func (s *Solver) Parameters() flex.SolverParameters { return s.params }

// SetParameters replaces the solver-wide parameters. Nothing changes on
// error.
func (s *Solver) SetParameters(p flex.SolverParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.MaxBatches != s.params.MaxBatches {
		s.set.SetMaxBatches(p.MaxBatches)
	}
	s.params = p
	return nil
}

// SetConstraintParameters tunes constraint type t.
func (s *Solver) SetConstraintParameters(t flex.ConstraintType, p flex.ConstraintParameters) error {
	if t < 0 || t >= flex.ConstraintTypeCount {
		return &flex.IndexError{Kind: "constraint type", Index: int(t), Len: int(flex.ConstraintTypeCount)}
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%v: %w", t, err)
	}
	s.set.Params[t] = p
	return nil
}

// World returns the collider world the solver reads.
func (s *Solver) World() *collider.World { return s.world }

// Particles exposes the particle arrays. Callers may edit values between
// steps but must not change array lengths.
func (s *Solver) Particles() *particles.Data { return s.particles }

// Constraints returns the constraint set.
func (s *Solver) Constraints() *constraints.Set { return s.set }

// AddParticles allocates count particle slots, reusing released slots
// lowest index first. New particles are static until set.
func (s *Solver) AddParticles(count int) (particles.Range, error) {
	if s.destroyed {
		return particles.Range{}, flex.ErrDestroyed
	}
	if count < 0 {
		return particles.Range{}, fmt.Errorf("%w: particle count %d < 0", flex.ErrInvalidConfig, count)
	}
	r := s.particles.Allocate(count)
	s.simplexDirty = true
	return r, nil
}

// SetParticle initialises slot i and wakes it.
func (s *Solver) SetParticle(i int, p particles.Particle) error {
	if s.destroyed {
		return flex.ErrDestroyed
	}
	if err := s.particles.Set(i, p); err != nil {
		return err
	}
	s.particles.Wake(i)
	return nil
}

// RemoveParticles releases the slots of r. Slots still referenced by a
// constraint are refused with flex.ErrParticleReferenced.
func (s *Solver) RemoveParticles(r particles.Range) error {
	if s.destroyed {
		return flex.ErrDestroyed
	}
	if err := s.particles.Release(r); err != nil {
		return err
	}
	s.simplexDirty = true
	return nil
}

// SetSimplices replaces the collision simplices. Every index is checked
// against the particle arrays; nothing changes on error.
func (s *Solver) SetSimplices(simplices []int, counts contacts.SimplexCounts) error {
	if err := counts.Validate(simplices, s.particles.Len()); err != nil {
		return err
	}
	s.simplices = append(s.simplices[:0], simplices...)
	s.counts = counts
	s.autoSimplices = false
	s.simplexDirty = false
	return nil
}

// Simplices returns the collision simplices in use.
func (s *Solver) Simplices() ([]int, contacts.SimplexCounts) { return s.simplices, s.counts }

func (s *Solver) refreshSimplices() {
	if s.autoSimplices && (s.simplexDirty || s.simplices == nil) {
		s.simplices, s.counts = contacts.PointSimplices(s.particles.ActiveIndices())
	}
	s.simplexDirty = false
}

// Destroy releases every array. Later calls return flex.ErrDestroyed.
func (s *Solver) Destroy() {
	if s.destroyed {
		return
	}
	s.set.Clear()
	s.particles.Clear()
	s.simplices, s.triangles = nil, nil
	s.prevTransforms = nil
	s.destroyed = true
	s.log.Debug("destroyed", zap.Int64("steps", s.steps))
}
