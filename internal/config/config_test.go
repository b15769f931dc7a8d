package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/flexsim/internal/flex"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scenario != "rope" {
		t.Errorf("expected scenario rope, got %s", cfg.Scenario)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	p, err := cfg.SolverParameters()
	if err != nil {
		t.Fatal(err)
	}
	if p != withSubsteps(flex.DefaultSolverParameters(), cfg.Substeps) {
		t.Errorf("default config does not round trip solver parameters: %+v", p)
	}
}

func withSubsteps(p flex.SolverParameters, n int) flex.SolverParameters {
	p.SubstepCount = n
	return p
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("rope", "short")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Scene.Count != 8 {
		t.Errorf("expected count 8, got %d", cfg.Scene.Count)
	}
	cfg.Scene.Count = 99
	if GetPreset("rope", "short").Scene.Count != 8 {
		t.Error("preset mutated through returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("rope", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "short"); cfg != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestPresetsValidate(t *testing.T) {
	for scenario, presets := range Presets {
		for name, cfg := range presets {
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", scenario, name, err)
			}
			if cfg.Scenario != scenario {
				t.Errorf("%s/%s: scenario %q", scenario, name, cfg.Scenario)
			}
		}
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("pile")
	if len(presets) != 3 || presets[0] != "planar" {
		t.Errorf("unexpected pile presets %v", presets)
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"run.yaml", "run.toml"} {
		path := filepath.Join(dir, name)
		want := GetPreset("rope", "long")
		if err := Save(path, want); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if got.Scene.Count != want.Scene.Count || got.Solver.Gravity != want.Solver.Gravity {
			t.Errorf("%s: got %+v", name, got)
		}
		if got.Constraints["distance"].Iterations != 4 {
			t.Errorf("%s: constraint override lost: %+v", name, got.Constraints)
		}
	}
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, body string
	}{
		{"bad.toml", "scenario = \"rope\"\nbogus = 1\n"},
		{"dt.yaml", "dt: 0\n"},
		{"mode.yaml", "solver:\n  mode: 4d\n"},
		{"type.yaml", "constraints:\n  springs:\n    iterations: 2\n"},
		{"order.yaml", "constraints:\n  distance:\n    order: random\n"},
		{"run.json", "{}"},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.name)
		if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestConstraintOverrides(t *testing.T) {
	off := false
	cfg := DefaultConfig()
	cfg.Constraints = map[string]ConstraintConfig{
		"density": {Order: "sequential", Iterations: 3},
		"bending": {Enabled: &off, SOR: 1.5},
	}
	params, err := cfg.ConstraintParameters()
	if err != nil {
		t.Fatal(err)
	}
	if p := params[flex.Density]; p.EvaluationOrder != flex.Sequential || p.Iterations != 3 {
		t.Errorf("density override not applied: %+v", p)
	}
	if p := params[flex.Bending]; p.Enabled || p.SORFactor != 1.5 {
		t.Errorf("bending override not applied: %+v", p)
	}
	if !params[flex.Distance].Enabled {
		t.Error("untouched type should stay enabled")
	}
}
