package flex

import "math"

// MaterialCombineMode selects how two materials merge at a contact. When
// two modes meet, the one with the higher value wins.
type MaterialCombineMode int

const (
	CombineAverage MaterialCombineMode = iota
	CombineMinimum
	CombineMultiply
	CombineMaximum
)

func (m MaterialCombineMode) String() string {
	switch m {
	case CombineAverage:
		return "average"
	case CombineMinimum:
		return "minimum"
	case CombineMultiply:
		return "multiply"
	case CombineMaximum:
		return "maximum"
	}
	return "unknown"
}

// CollisionMaterial describes the surface response of a particle or collider.
type CollisionMaterial struct {
	DynamicFriction   float32             `yaml:"dynamic_friction" toml:"dynamic-friction"`
	StaticFriction    float32             `yaml:"static_friction" toml:"static-friction"`
	RollingFriction   float32             `yaml:"rolling_friction" toml:"rolling-friction"`
	Stickiness        float32             `yaml:"stickiness" toml:"stickiness"`
	StickDistance     float32             `yaml:"stick_distance" toml:"stick-distance"`
	FrictionCombine   MaterialCombineMode `yaml:"friction_combine" toml:"friction-combine"`
	StickinessCombine MaterialCombineMode `yaml:"stickiness_combine" toml:"stickiness-combine"`
	RollingContacts   bool                `yaml:"rolling_contacts" toml:"rolling-contacts"`
}

func combine(a, b float32, mode MaterialCombineMode) float32 {
	switch mode {
	case CombineMinimum:
		return float32(math.Min(float64(a), float64(b)))
	case CombineMultiply:
		return a * b
	case CombineMaximum:
		return float32(math.Max(float64(a), float64(b)))
	default:
		return (a + b) * 0.5
	}
}

// CombineMaterials merges the materials on both sides of a contact. Index -1
// means "no material"; if only one side has one it is used as is. The higher
// priority combine mode wins; on equal priority both sides already agree, so
// the lower index is reported as the mode source.
func CombineMaterials(materials []CollisionMaterial, a, b int) CollisionMaterial {
	switch {
	case a < 0 && b < 0:
		return CollisionMaterial{}
	case a < 0:
		return materials[b]
	case b < 0:
		return materials[a]
	}
	ma, mb := materials[a], materials[b]

	frictionMode := ma.FrictionCombine
	if mb.FrictionCombine > frictionMode {
		frictionMode = mb.FrictionCombine
	}
	stickMode := ma.StickinessCombine
	if mb.StickinessCombine > stickMode {
		stickMode = mb.StickinessCombine
	}

	return CollisionMaterial{
		DynamicFriction:   combine(ma.DynamicFriction, mb.DynamicFriction, frictionMode),
		StaticFriction:    combine(ma.StaticFriction, mb.StaticFriction, frictionMode),
		RollingFriction:   combine(ma.RollingFriction, mb.RollingFriction, frictionMode),
		Stickiness:        combine(ma.Stickiness, mb.Stickiness, stickMode),
		StickDistance:     combine(ma.StickDistance, mb.StickDistance, stickMode),
		FrictionCombine:   frictionMode,
		StickinessCombine: stickMode,
		RollingContacts:   ma.RollingContacts || mb.RollingContacts,
	}
}
