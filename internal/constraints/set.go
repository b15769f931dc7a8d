package constraints

import (
	"github.com/san-kum/flexsim/internal/batch"
	"github.com/san-kum/flexsim/internal/contacts"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
)

// Set owns every constraint family of one solver.
type Set struct {
	Params [flex.ConstraintTypeCount]flex.ConstraintParameters

	Distance      *Distance
	Bending       *Bending
	Volume        *Volume
	ShapeMatching *ShapeMatching
	Skin          *Skin
	Pin           *Pin
	Tether        *Tether
	Chain         *Chain
	StretchShear  *StretchShear
	BendTwist     *BendTwist
	Aerodynamics  *Aerodynamics

	ColliderContacts ContactSet
	ParticleContacts ContactSet
	Density          Density

	batcher *batch.Batcher
}

// NewSet returns an empty set over data.
func NewSet(data *particles.Data, maxBatches int) *Set {
	return &Set{
		Params:        flex.DefaultConstraintParameters(),
		Distance:      newDistance(data),
		Bending:       newBending(data),
		Volume:        newVolume(data),
		ShapeMatching: newShapeMatching(data),
		Skin:          newSkin(data),
		Pin:           newPin(data),
		Tether:        newTether(data),
		Chain:         newChain(data),
		StretchShear:  newStretchShear(data),
		BendTwist:     newBendTwist(data),
		Aerodynamics:  newAerodynamics(data),
		batcher:       batch.NewBatcher(maxBatches),
	}
}

// SetMaxBatches rebuilds the batcher and forces every family to rebatch.
func (s *Set) SetMaxBatches(n int) {
	s.batcher = batch.NewBatcher(n)
	for _, f := range s.families() {
		f.dirty = true
	}
}

func (s *Set) families() []*family {
	return []*family{
		&s.Distance.family, &s.Bending.family, &s.Volume.family, &s.ShapeMatching.family,
		&s.Skin.family, &s.Pin.family, &s.Tether.family, &s.Chain.family,
		&s.StretchShear.family, &s.BendTwist.family, &s.Aerodynamics.family,
	}
}

// Rebatch recolours every family whose constraints changed since the last
// call and returns the total overflow of user constraints.
func (s *Set) Rebatch() int {
	rebatch := func(f *family, permute func([]int)) {
		if f.dirty {
			f.rebatch(s.batcher, permute)
		}
	}
	rebatch(&s.Distance.family, s.Distance.permuteFields)
	rebatch(&s.Bending.family, s.Bending.permuteFields)
	rebatch(&s.Volume.family, s.Volume.permuteFields)
	rebatch(&s.ShapeMatching.family, s.ShapeMatching.permuteFields)
	rebatch(&s.Skin.family, s.Skin.permuteFields)
	rebatch(&s.Pin.family, s.Pin.permuteFields)
	rebatch(&s.Tether.family, s.Tether.permuteFields)
	rebatch(&s.Chain.family, s.Chain.permuteFields)
	rebatch(&s.StretchShear.family, s.StretchShear.permuteFields)
	rebatch(&s.BendTwist.family, s.BendTwist.permuteFields)
	rebatch(&s.Aerodynamics.family, s.Aerodynamics.permuteFields)

	overflow := 0
	for _, f := range s.families() {
		overflow += f.overflow
	}
	return overflow
}

// SetContacts batches this step's contacts and fluid pairs and returns
// how many had to be dropped.
func (s *Set) SetContacts(ctx *Context, particleContacts, colliderContacts []contacts.Contact, fluid []contacts.FluidInteraction) int {
	n := ctx.Particles.Len()
	s.ParticleContacts.set(s.batcher, particleContacts, ctx.Simplices, ctx.Counts, false, n)
	s.ColliderContacts.set(s.batcher, colliderContacts, ctx.Simplices, ctx.Counts, true, n)
	s.Density.set(s.batcher, ctx, fluid)
	return s.ParticleContacts.overflow + s.ColliderContacts.overflow + s.Density.overflow
}

// Initialize prepares a substep: multipliers restart from zero.
func (s *Set) Initialize() {
	for _, f := range s.families() {
		f.resetLambdas()
	}
	s.ColliderContacts.resetLambdas()
	s.ParticleContacts.resetLambdas()
}

// Count returns the number of constraints of type t.
func (s *Set) Count(t flex.ConstraintType) int {
	switch t {
	case flex.Distance:
		return s.Distance.Len()
	case flex.Bending:
		return s.Bending.Len()
	case flex.Volume:
		return s.Volume.Len()
	case flex.ShapeMatching:
		return s.ShapeMatching.Len()
	case flex.Skin:
		return s.Skin.Len()
	case flex.Pin:
		return s.Pin.Len()
	case flex.Tether:
		return s.Tether.Len()
	case flex.Chain:
		return s.Chain.Len()
	case flex.StretchShear:
		return s.StretchShear.Len()
	case flex.BendTwist:
		return s.BendTwist.Len()
	case flex.Aerodynamics:
		return s.Aerodynamics.Len()
	case flex.Collision, flex.Friction:
		return len(s.ColliderContacts.Contacts())
	case flex.ParticleCollision, flex.ParticleFriction:
		return len(s.ParticleContacts.Contacts())
	case flex.Density:
		return len(s.Density.Interactions())
	}
	return 0
}

// Step evaluates and applies constraint type t for one substep, repeated
// for the type's iteration count. Families changed since the last Rebatch
// are rebatched first. No family currently scales by stepDt or substeps.
func (s *Set) Step(t flex.ConstraintType, ctx *Context, stepDt, substepDt float32, substeps int) {
	p := s.Params[t]
	if !p.Enabled || s.Count(t) == 0 || substepDt <= 0 {
		return
	}
	s.Rebatch()
	for _, f := range s.families() {
		if len(f.lambdas) != f.Len()*f.lambdaStride {
			f.resetLambdas()
		}
	}
	for it := 0; it < max(p.Iterations, 1); it++ {
		switch t {
		case flex.Collision:
			s.ColliderContacts.evaluateCollision(ctx, substepDt, p)
		case flex.ParticleCollision:
			s.ParticleContacts.evaluateParticleCollision(ctx, substepDt, p)
		case flex.Friction:
			s.ColliderContacts.evaluateFriction(ctx, substepDt, p)
		case flex.ParticleFriction:
			s.ParticleContacts.evaluateParticleFriction(ctx, substepDt, p)
		case flex.Density:
			s.Density.evaluate(ctx, substepDt, p)
		case flex.Volume:
			s.Volume.evaluate(ctx, substepDt, p)
		case flex.ShapeMatching:
			s.ShapeMatching.evaluate(ctx, substepDt, p)
		case flex.Tether:
			s.Tether.evaluate(ctx, substepDt, p)
		case flex.Chain:
			s.Chain.evaluate(ctx, substepDt, p)
		case flex.Distance:
			s.Distance.evaluate(ctx, substepDt, p)
		case flex.Bending:
			s.Bending.evaluate(ctx, substepDt, p)
		case flex.StretchShear:
			s.StretchShear.evaluate(ctx, substepDt, p)
		case flex.BendTwist:
			s.BendTwist.evaluate(ctx, substepDt, p)
		case flex.Aerodynamics:
			s.Aerodynamics.evaluate(ctx, substepDt, p)
		case flex.Skin:
			s.Skin.evaluate(ctx, substepDt, p)
		case flex.Pin:
			s.Pin.evaluate(ctx, substepDt, p)
		}
	}
}

// Clear drops every constraint and releases particle references.
func (s *Set) Clear() {
	for _, f := range s.families() {
		f.clear()
	}
	s.Distance.permuteFields(nil)
	s.Bending.permuteFields(nil)
	s.Volume.permuteFields(nil)
	s.ShapeMatching.permuteFields(nil)
	s.Skin.permuteFields(nil)
	s.Pin.permuteFields(nil)
	s.Tether.permuteFields(nil)
	s.Chain.permuteFields(nil)
	s.StretchShear.permuteFields(nil)
	s.BendTwist.permuteFields(nil)
	s.Aerodynamics.permuteFields(nil)
	s.ColliderContacts.clear()
	s.ParticleContacts.clear()
	s.Density.clear()
}
