package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/particles"
	"github.com/san-kum/flexsim/internal/solver"
)

// Momentum returns the total linear momentum of the dynamic particles.
func Momentum(pd *particles.Data) mgl32.Vec3 {
	var p mgl32.Vec3
	dynamic(pd, func(i int, m float32) {
		p = p.Add(pd.Velocities[i].Vec3().Mul(m))
	})
	return p
}

// MomentumDrift is the largest distance of the total linear momentum from
// its first sample. Without gravity or colliders it should stay near zero.
type MomentumDrift struct {
	name     string
	initial  mgl32.Vec3
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(pd *particles.Data, _ solver.Stats, _ float64) {
	p := Momentum(pd)
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, float64(p.Sub(m.initial).Len()))
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = mgl32.Vec3{}
	m.maxDrift = 0
	m.samples = 0
}
