package scenario

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/metrics"
)

// Result is a sampled trajectory of a run. Frames[k] holds the positions
// of Particles at Times[k].
type Result struct {
	Scenario  string
	Particles []int
	Times     []float64
	Frames    [][]mgl32.Vec3
	Metrics   map[string]float64
}

// StepFunc is called after every step with the step number and time.
type StepFunc func(step int, t float64)

// Experiment runs one scene for the configured duration.
type Experiment struct {
	scene       *Scene
	metrics     []metrics.Metric
	onStep      []StepFunc
	sampleEvery int
}

func NewExperiment(sc *Scene, ms ...metrics.Metric) *Experiment {
	return &Experiment{scene: sc, metrics: ms, sampleEvery: 1}
}

// SampleEvery records a frame every n steps. The last step is always kept.
func (e *Experiment) SampleEvery(n int) {
	if n < 1 {
		n = 1
	}
	e.sampleEvery = n
}

func (e *Experiment) OnStep(fn StepFunc) {
	e.onStep = append(e.onStep, fn)
}

func (e *Experiment) Scene() *Scene { return e.scene }

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	sc := e.scene
	if sc == nil || sc.Solver == nil {
		return nil, fmt.Errorf("experiment has no scene")
	}
	cfg := sc.Config
	dt := float32(cfg.Dt)
	steps := cfg.Steps()

	for _, m := range e.metrics {
		m.Reset()
	}
	res := &Result{
		Scenario:  sc.Name,
		Particles: append([]int(nil), sc.Particles...),
	}
	e.sample(res, 0)

	for step := 1; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := sc.Solver.Solve(dt, cfg.Substeps); err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		t := float64(step) * cfg.Dt
		stats := sc.Solver.Stats()
		for _, m := range e.metrics {
			m.Observe(sc.Solver.Particles(), stats, t)
		}
		if step%e.sampleEvery == 0 || step == steps {
			e.sample(res, t)
		}
		for _, fn := range e.onStep {
			fn(step, t)
		}
	}
	res.Metrics = metrics.Collect(e.metrics)
	return res, nil
}

func (e *Experiment) sample(res *Result, t float64) {
	pd := e.scene.Solver.Particles()
	frame := make([]mgl32.Vec3, len(res.Particles))
	for k, i := range res.Particles {
		frame[k] = pd.Position(i)
	}
	res.Times = append(res.Times, t)
	res.Frames = append(res.Frames, frame)
}
