package flex

// ConstraintType enumerates every constraint family the solver knows.
// The numeric values are stable and index per-type parameter tables.
type ConstraintType int

const (
	Tether ConstraintType = iota
	Volume
	Chain
	Bending
	Distance
	ShapeMatching
	BendTwist
	StretchShear
	Pin
	ParticleCollision
	Density
	Collision
	Skin
	Aerodynamics
	ParticleFriction
	Friction

	ConstraintTypeCount
)

var constraintTypeNames = [ConstraintTypeCount]string{
	Tether:            "tether",
	Volume:            "volume",
	Chain:             "chain",
	Bending:           "bending",
	Distance:          "distance",
	ShapeMatching:     "shape_matching",
	BendTwist:         "bend_twist",
	StretchShear:      "stretch_shear",
	Pin:               "pin",
	ParticleCollision: "particle_collision",
	Density:           "density",
	Collision:         "collision",
	Skin:              "skin",
	Aerodynamics:      "aerodynamics",
	ParticleFriction:  "particle_friction",
	Friction:          "friction",
}

func (t ConstraintType) String() string {
	if t < 0 || t >= ConstraintTypeCount {
		return "unknown"
	}
	return constraintTypeNames[t]
}

// ParseConstraintType looks a type up by its String name.
func ParseConstraintType(name string) (ConstraintType, bool) {
	for t, n := range constraintTypeNames {
		if n == name {
			return ConstraintType(t), true
		}
	}
	return 0, false
}

// SolveOrder is the fixed order in which constraint types run inside a
// substep. Contacts go first so later types never push particles through
// colliders; skin and pin constraints run last and have the final word.
var SolveOrder = [...]ConstraintType{
	Collision,
	ParticleCollision,
	Friction,
	ParticleFriction,
	Density,
	Volume,
	ShapeMatching,
	Tether,
	Chain,
	Distance,
	Bending,
	StretchShear,
	BendTwist,
	Aerodynamics,
	Skin,
	Pin,
}

// ParticleFlags live in the upper byte of a particle phase.
type ParticleFlags uint32

const (
	SelfCollide ParticleFlags = 1 << 24
	Fluid       ParticleFlags = 1 << 25
	OneSided    ParticleFlags = 1 << 26
)

const (
	ParticleGroupMask  = 0x00FFFFFF
	FilterCategoryBits = 0x0000FFFF
	MaxCategory        = 15
)

const (
	CollideWithEverything uint32 = 0x0000FFFF
	CollideWithNothing    uint32 = 0
)

// MakePhase packs a group id and flags into a phase value.
func MakePhase(group int, flags ParticleFlags) uint32 {
	return uint32(group)&ParticleGroupMask | uint32(flags)
}

// PhaseGroup extracts the group id of a phase.
func PhaseGroup(phase uint32) int {
	return int(phase & ParticleGroupMask)
}

// PhaseFlags extracts the flags of a phase.
func PhaseFlags(phase uint32) ParticleFlags {
	return ParticleFlags(phase &^ ParticleGroupMask)
}

// MakeFilter packs a collision mask and a single category into a filter.
func MakeFilter(mask uint32, category int) uint32 {
	return mask<<16 | 1<<uint(category)&FilterCategoryBits
}

// FilterMask returns the set of categories a filter collides with.
func FilterMask(filter uint32) uint32 { return filter >> 16 }

// FilterCategory returns the category bits of a filter.
func FilterCategory(filter uint32) uint32 { return filter & FilterCategoryBits }

// FiltersCollide reports whether two filters accept each other.
func FiltersCollide(a, b uint32) bool {
	return FilterMask(a)&FilterCategory(b) != 0 && FilterMask(b)&FilterCategory(a) != 0
}

// DefaultFilter collides with everything and belongs to category 0.
var DefaultFilter = MakeFilter(CollideWithEverything, 0)
