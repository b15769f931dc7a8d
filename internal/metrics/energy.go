package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/particles"
	"github.com/san-kum/flexsim/internal/solver"
)

func kinetic(pd *particles.Data) float64 {
	var ke float64
	dynamic(pd, func(i int, m float32) {
		ke += 0.5 * float64(m*pd.Velocities[i].Vec3().LenSqr())
	})
	return ke
}

// KineticEnergy is the mean translational kinetic energy over all samples.
type KineticEnergy struct {
	name    string
	total   float64
	samples int
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(pd *particles.Data, _ solver.Stats, _ float64) {
	e.total += kinetic(pd)
	e.samples++
}

func (e *KineticEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *KineticEnergy) Reset() {
	e.total = 0
	e.samples = 0
}

// EnergyDrift is the largest relative change of kinetic plus gravitational
// potential energy since the first sample.
type EnergyDrift struct {
	name          string
	gravity       mgl32.Vec3
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(gravity mgl32.Vec3) *EnergyDrift {
	return &EnergyDrift{
		name:    "energy_drift",
		gravity: gravity,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(pd *particles.Data, _ solver.Stats, _ float64) {
	energy := kinetic(pd)
	dynamic(pd, func(i int, m float32) {
		energy -= float64(m * e.gravity.Dot(pd.Position(i)))
	})

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
