package viz

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/scenario"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(10, 10)
	if !c.IsSet(0, 0) || !c.IsSet(3, 3) || c.IsSet(1, 0) {
		t.Errorf("unexpected dots %q", c.String())
	}
	if got := c.String(); got != string([]rune{0x2801, 0x2880})+"\n" {
		t.Errorf("unexpected canvas %q", got)
	}
	c.Clear()
	if c.IsSet(0, 0) {
		t.Error("expected clear canvas")
	}
}

func TestDrawLineEndpoints(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(1, 1, 15, 17)
	if !c.IsSet(1, 1) || !c.IsSet(15, 17) {
		t.Error("line must include both endpoints")
	}
}

func TestCameraCentersTarget(t *testing.T) {
	cam := NewCamera()
	cam.Target = mgl32.Vec3{1, 2, 3}
	x, y, _, _, ok := cam.Project(mgl32.Vec3{1, 2, 3}, 100, 80)
	if !ok || x != 50 || y != 40 {
		t.Errorf("target projected to (%d, %d) ok=%v", x, y, ok)
	}
	// points behind the camera are culled
	if _, _, _, _, ok := cam.Project(mgl32.Vec3{1, 2, 3}.Add(mgl32.Vec3{0, 100, 100}), 100, 80); ok {
		t.Error("expected point behind camera to be hidden")
	}
}

func TestPlot(t *testing.T) {
	if Plot(nil, "empty", 10, 3) != "" {
		t.Error("expected empty plot")
	}
	if out := Plot([]float64{1, 2, 3}, "energy", 10, 3); !strings.Contains(out, "energy") {
		t.Errorf("caption missing: %q", out)
	}
	frames := [][]mgl32.Vec3{{{0, 1, 0}}, {{0, 2, 0}}}
	if got := Column(frames, 0, 1); len(got) != 2 || got[1] != 2 {
		t.Errorf("unexpected column %v", got)
	}
}

func TestModelSteps(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scene.Count = 4
	m, err := NewModel(scenario.NewRegistry(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		next, _ := m.Update(TickMsg{})
		m = next.(Model)
	}
	if m.simTime <= 0 || len(m.energyHistory) == 0 {
		t.Errorf("expected progress, time %f history %d", m.simTime, len(m.energyHistory))
	}
	if !strings.Contains(m.View(), "ROPE") {
		t.Error("view should name the scenario")
	}
}
