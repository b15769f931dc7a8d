package metrics

import (
	"github.com/san-kum/flexsim/internal/particles"
	"github.com/san-kum/flexsim/internal/solver"
)

// Contacts is the mean number of particle and collider contacts per step.
type Contacts struct {
	name    string
	sum     float64
	samples int
}

func NewContacts() *Contacts {
	return &Contacts{
		name: "contacts",
	}
}

func (c *Contacts) Name() string {
	return c.name
}

func (c *Contacts) Observe(_ *particles.Data, stats solver.Stats, _ float64) {
	c.sum += float64(stats.ParticleContacts + stats.ColliderContacts)
	c.samples++
}

func (c *Contacts) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *Contacts) Reset() {
	c.sum = 0
	c.samples = 0
}

// Sleeping is the fraction of dynamic particles asleep at the last sample.
type Sleeping struct {
	name     string
	fraction float64
}

func NewSleeping() *Sleeping {
	return &Sleeping{name: "sleeping"}
}

func (s *Sleeping) Name() string { return s.name }

func (s *Sleeping) Observe(pd *particles.Data, stats solver.Stats, _ float64) {
	n := 0
	dynamic(pd, func(int, float32) { n++ })
	if n == 0 {
		s.fraction = 0
		return
	}
	s.fraction = float64(stats.SleepingParticles) / float64(n)
}

func (s *Sleeping) Value() float64 { return s.fraction }

func (s *Sleeping) Reset() { s.fraction = 0 }
