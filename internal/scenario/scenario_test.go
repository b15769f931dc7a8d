package scenario

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/flex"
	"github.com/san-kum/flexsim/internal/metrics"
)

func smallConfig(scenario string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scenario = scenario
	cfg.Scene.Count = 4
	cfg.Duration = 0.25
	return cfg
}

func TestListScenarios(t *testing.T) {
	assert.Equal(t, []string{"cloth", "fluid", "jelly", "pile", "rope"}, NewRegistry().ListScenarios())
}

func TestBuildUnknown(t *testing.T) {
	_, err := NewRegistry().Build(smallConfig("nonexistent"))
	assert.Error(t, err)
}

func TestBuildInvalidConfig(t *testing.T) {
	cfg := smallConfig("rope")
	cfg.Substeps = 0
	_, err := NewRegistry().Build(cfg)
	assert.ErrorIs(t, err, flex.ErrInvalidConfig)
}

func TestBuildEveryScenario(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.ListScenarios() {
		t.Run(name, func(t *testing.T) {
			sc, err := r.Build(smallConfig(name))
			require.NoError(t, err)
			require.NotEmpty(t, sc.Particles)
			assert.True(t, sc.Floor.Valid())

			res, err := NewExperiment(sc, metrics.Default(sc.Solver.Parameters().Gravity)...).Run(context.Background())
			require.NoError(t, err)
			assert.Len(t, res.Frames, len(res.Times))
			assert.Equal(t, 1.0, res.Metrics["stability"])
			for _, p := range res.Frames[len(res.Frames)-1] {
				assert.True(t, flex.Vec3Finite(p))
				assert.Greater(t, p[1], float32(-0.1), "particle fell through the floor")
			}
		})
	}
}

func TestRopeHangsFromAnchor(t *testing.T) {
	cfg := smallConfig("rope")
	cfg.Scene.Floor = false
	cfg.Duration = 1
	sc, err := NewRegistry().Build(cfg)
	require.NoError(t, err)

	_, err = NewExperiment(sc).Run(context.Background())
	require.NoError(t, err)

	pd := sc.Solver.Particles()
	first := pd.Position(sc.Particles[0])
	assert.InDelta(t, 0, first.Sub(mgl32.Vec3{0, cfg.Scene.Height, 0}).Len(), 1e-3)
	last := pd.Position(sc.Particles[len(sc.Particles)-1])
	assert.Less(t, last[1], cfg.Scene.Height, "free end should swing down")
	assert.LessOrEqual(t, last.Sub(first).Len(), float32(len(sc.Particles)-1)*cfg.Scene.Spacing*1.2)
}

func TestClothCornersStayPut(t *testing.T) {
	cfg := smallConfig("cloth")
	sc, err := NewRegistry().Build(cfg)
	require.NoError(t, err)
	pd := sc.Solver.Particles()
	corner := pd.Position(sc.Particles[0])

	_, err = NewExperiment(sc).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, corner, pd.Position(sc.Particles[0]))
	assert.Equal(t, 2*(cfg.Scene.Count-1)*(cfg.Scene.Count-1), sc.Solver.DeformableTriangleCount())
}

func TestSampling(t *testing.T) {
	cfg := smallConfig("pile")
	cfg.Duration = 10 * cfg.Dt
	sc, err := NewRegistry().Build(cfg)
	require.NoError(t, err)

	e := NewExperiment(sc)
	e.SampleEvery(4)
	var calls int
	e.OnStep(func(int, float64) { calls++ })
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	// initial, steps 4 and 8, and the final step
	assert.Len(t, res.Frames, 4)
	assert.Equal(t, 10, calls)
}

func TestRunCancelled(t *testing.T) {
	sc, err := NewRegistry().Build(smallConfig("rope"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExperiment(sc).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
