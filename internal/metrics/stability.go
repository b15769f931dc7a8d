package metrics

import (
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/particles"
	"github.com/san-kum/flexsim/internal/solver"
)

// Stability is the fraction of steps in which every particle stayed finite,
// inside the threshold box and needed no NaN correction.
type Stability struct {
	name       string
	threshold  float32
	violations int
	samples    int
	lastNaN    int64
}

func NewStability(threshold float32) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(pd *particles.Data, stats solver.Stats, _ float64) {
	s.samples++
	if stats.NaNCorrections > s.lastNaN {
		s.lastNaN = stats.NaNCorrections
		s.violations++
		return
	}
	for i := 0; i < pd.Len(); i++ {
		if !pd.Active[i] {
			continue
		}
		p := pd.Position(i)
		if !flex.Vec3Finite(p) || flex.Abs(p[0]) > s.threshold || flex.Abs(p[1]) > s.threshold || flex.Abs(p[2]) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
	s.lastNaN = 0
}
