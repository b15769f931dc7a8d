package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/scenario"
)

func testResult() *scenario.Result {
	return &scenario.Result{
		Scenario:  "rope",
		Particles: []int{0, 3},
		Times:     []float64{0, 0.5},
		Frames: [][]mgl32.Vec3{
			{{0, 1, 0}, {0.3, 1, 0}},
			{{0, 1, 0}, {0.25, 0.8, -0.125}},
		},
		Metrics: map[string]float64{"kinetic_energy": 1.5},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Seed = 42
	runID, err := st.Save(cfg, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, "rope_") {
		t.Errorf("expected run id prefixed with scenario, got %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Scenario != "rope" {
		t.Errorf("expected scenario 'rope', got %q", meta.Scenario)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if meta.Particles != 2 || meta.Frames != 2 {
		t.Errorf("expected 2 particles and 2 frames, got %d and %d", meta.Particles, meta.Frames)
	}
	if meta.Metrics["kinetic_energy"] != 1.5 {
		t.Errorf("expected kinetic energy 1.5, got %f", meta.Metrics["kinetic_energy"])
	}
	if meta.Config == nil || meta.Config.Substeps != cfg.Substeps {
		t.Errorf("expected config to round trip, got %+v", meta.Config)
	}

	times, frames, err := st.LoadFrames(runID)
	if err != nil {
		t.Fatalf("load frames failed: %v", err)
	}
	if len(times) != 2 || times[1] != 0.5 {
		t.Fatalf("unexpected times %v", times)
	}
	want := testResult().Frames
	for k := range want {
		for i := range want[k] {
			if !frames[k][i].ApproxEqual(want[k][i]) {
				t.Errorf("frame %d particle %d: expected %v, got %v", k, i, want[k][i], frames[k][i])
			}
		}
	}
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty list, got %v, %v", runs, err)
	}

	cfg := config.DefaultConfig()
	a, _ := st.Save(cfg, testResult())
	b, _ := st.Save(cfg, testResult())
	if a == b {
		t.Fatalf("expected unique run ids, got %q twice", a)
	}
	if err := os.MkdirAll(filepath.Join(dir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Timestamp.Before(runs[1].Timestamp) {
		t.Error("expected newest run first")
	}
}

func TestLoadFramesRejectsBadRows(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	runDir := filepath.Join(dir, "bad")
	if err := os.MkdirAll(runDir, 0755); err != nil {
		t.Fatal(err)
	}
	data := "time,p0_x,p0_y\n0,1,2\n"
	if err := os.WriteFile(filepath.Join(runDir, positionsFile), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.LoadFrames("bad"); err == nil {
		t.Error("expected error for truncated position row")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, config.DefaultConfig(), testResult()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var got ExportData
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Scenario != "rope" || len(got.Frames) != 2 || got.Frames[1][1][2] != -0.125 {
		t.Errorf("unexpected export %+v", got)
	}

	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, config.DefaultConfig(), testResult()); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected export file: %v", err)
	}
}
