package solver

import (
	"go.uber.org/zap"
)

// Stats summarises the solver's work. Counters accumulate over the
// solver's lifetime; contact counts describe the last step.
type Stats struct {
	Steps                 int64
	ParticleContacts      int
	ColliderContacts      int
	FluidPairs            int
	SleepingParticles     int
	BatchOverflow         int64
	NaNCorrections        int64
	DegenerateConstraints int64
}

// Stats returns a copy of the current counters.
func (s *Solver) Stats() Stats {
	st := s.last
	st.Steps = s.steps
	st.BatchOverflow = s.counters.BatchOverflow.Load()
	st.NaNCorrections = s.counters.NaNCorrections.Load()
	st.DegenerateConstraints = s.counters.DegenerateConstraints.Load()
	return st
}

// report folds one step's numbers into the stats and logs anomalies,
// throttled so a persistently overflowing scene does not flood the log.
func (s *Solver) report(overflow int, prev Stats) {
	if overflow > 0 {
		s.counters.BatchOverflow.Add(int64(overflow))
	}
	cur := s.Stats()

	if overflow > 0 && s.warn.Allow() {
		s.log.Warn("constraints dropped by batch overflow",
			zap.Int("dropped", overflow),
			zap.Int("max_batches", s.params.MaxBatches),
			zap.Int64("step", cur.Steps))
	}
	if nan := cur.NaNCorrections - prev.NaNCorrections; nan > 0 && s.warn.Allow() {
		s.log.Warn("non-finite corrections discarded",
			zap.Int64("count", nan),
			zap.Int64("step", cur.Steps))
	}
	if s.log.Core().Enabled(zap.DebugLevel) {
		s.log.Debug("step",
			zap.Int64("step", cur.Steps),
			zap.Int("particle_contacts", cur.ParticleContacts),
			zap.Int("collider_contacts", cur.ColliderContacts),
			zap.Int("fluid_pairs", cur.FluidPairs),
			zap.Int("sleeping", cur.SleepingParticles))
	}
}
