package solver

// Stage is the phase of a step the solver is in.
type Stage int

const (
	Idle Stage = iota
	Predicting
	ContactGenerating
	Batching
	Solving
	VelocityUpdating
	Interpolating
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Predicting:
		return "predicting"
	case ContactGenerating:
		return "contact-generating"
	case Batching:
		return "batching"
	case Solving:
		return "solving"
	case VelocityUpdating:
		return "velocity-updating"
	case Interpolating:
		return "interpolating"
	}
	return "unknown"
}

// Observer is notified of every stage transition. step counts completed
// calls to Solve, starting at zero.
type Observer interface {
	OnStage(stage Stage, step int64)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stage Stage, step int64)

func (f ObserverFunc) OnStage(stage Stage, step int64) { f(stage, step) }

func (s *Solver) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Stage returns the stage the solver is in.
func (s *Solver) Stage() Stage { return s.stage }

func (s *Solver) setStage(st Stage) {
	s.stage = st
	for _, o := range s.observers {
		o.OnStage(st, s.steps)
	}
}
