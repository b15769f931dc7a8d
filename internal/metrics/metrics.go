// Package metrics summarises a particle simulation while it runs. Each
// Metric observes the particle arrays and solver counters after every step
// and reduces them to one number.
package metrics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/particles"
	"github.com/san-kum/flexsim/internal/solver"
)

type Metric interface {
	Name() string
	Observe(pd *particles.Data, stats solver.Stats, t float64)
	Value() float64
	Reset()
}

// Default returns the metrics recorded for every run.
func Default(gravity mgl32.Vec3) []Metric {
	return []Metric{
		NewKineticEnergy(),
		NewEnergyDrift(gravity),
		NewMomentumDrift(),
		NewContacts(),
		NewStability(1e3),
		NewSleeping(),
	}
}

// Collect maps metric names to their current values.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// dynamic calls fn for every active particle with finite mass.
func dynamic(pd *particles.Data, fn func(i int, mass float32)) {
	for i := 0; i < pd.Len(); i++ {
		if pd.Active[i] && pd.InvMasses[i] > 0 {
			fn(i, 1/pd.InvMasses[i])
		}
	}
}
