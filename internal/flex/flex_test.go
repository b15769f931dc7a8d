package flex

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestCombineMaterials(t *testing.T) {
	mats := []CollisionMaterial{
		{DynamicFriction: 0.2, StaticFriction: 0.4, FrictionCombine: CombineAverage},
		{DynamicFriction: 0.6, StaticFriction: 0.8, FrictionCombine: CombineMaximum},
		{DynamicFriction: 0.5, StaticFriction: 0.5, FrictionCombine: CombineMinimum},
	}

	tests := []struct {
		name string
		a, b int
		want float32
		mode MaterialCombineMode
	}{
		{"max wins over average", 0, 1, 0.6, CombineMaximum},
		{"min wins over average", 0, 2, 0.2, CombineMinimum},
		{"max wins over min", 2, 1, 0.6, CombineMaximum},
		{"missing side uses other", -1, 2, 0.5, CombineMinimum},
		{"same material", 0, 0, 0.2, CombineAverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CombineMaterials(mats, tt.a, tt.b)
			if diff := got.DynamicFriction - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("dynamic friction = %v, want %v", got.DynamicFriction, tt.want)
			}
			if got.FrictionCombine != tt.mode {
				t.Errorf("mode = %v, want %v", got.FrictionCombine, tt.mode)
			}
		})
	}

	if got := CombineMaterials(mats, -1, -1); got != (CollisionMaterial{}) {
		t.Errorf("no materials should combine to zero value, got %+v", got)
	}
}

func TestFilters(t *testing.T) {
	everything := MakeFilter(CollideWithEverything, 0)
	onlyTwo := MakeFilter(1<<2, 1)
	catTwo := MakeFilter(CollideWithEverything, 2)

	if !FiltersCollide(everything, everything) {
		t.Error("default filters should collide")
	}
	if FiltersCollide(onlyTwo, everything) {
		t.Error("filter masking only category 2 should ignore category 0")
	}
	if !FiltersCollide(onlyTwo, catTwo) {
		t.Error("category 2 should collide with mask 1<<2")
	}
	if FiltersCollide(MakeFilter(CollideWithNothing, 0), everything) {
		t.Error("empty mask should collide with nothing")
	}
}

func TestPhase(t *testing.T) {
	p := MakePhase(42, SelfCollide|Fluid)
	if PhaseGroup(p) != 42 {
		t.Errorf("group = %d", PhaseGroup(p))
	}
	if PhaseFlags(p) != SelfCollide|Fluid {
		t.Errorf("flags = %x", PhaseFlags(p))
	}
}

func TestSolverParametersValidate(t *testing.T) {
	if err := DefaultSolverParameters().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*SolverParameters)
	}{
		{"zero substeps", func(p *SolverParameters) { p.SubstepCount = 0 }},
		{"too many batches", func(p *SolverParameters) { p.MaxBatches = 18 }},
		{"negative margin", func(p *SolverParameters) { p.CollisionMargin = -1 }},
		{"negative sleep", func(p *SolverParameters) { p.SleepThreshold = -0.1 }},
		{"damping above one", func(p *SolverParameters) { p.Damping = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultSolverParameters()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestArena(t *testing.T) {
	var a Arena[string]
	h0 := a.Add("a")
	h1 := a.Add("b")
	h2 := a.Add("c")

	if err := a.Remove(h1); err != nil {
		t.Fatal(err)
	}
	if err := a.Remove(h0); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Get(h1); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("stale get err = %v", err)
	}

	// lowest index is reused first
	h3 := a.Add("d")
	if h3.Index != 0 || h3.Generation != 1 {
		t.Errorf("reused handle = %v", h3)
	}
	if v, _ := a.Get(h2); v != "c" {
		t.Errorf("h2 = %q", v)
	}
	if a.Len() != 2 {
		t.Errorf("len = %d", a.Len())
	}

	if _, err := a.Get(Handle{Index: 99}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out of range err = %v", err)
	}
}

func TestParallelFor(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000, 10007} {
		var sum atomic.Int64
		ParallelFor(n, 16, func(start, end int) {
			for i := start; i < end; i++ {
				sum.Add(int64(i))
			}
		})
		want := int64(n) * int64(n-1) / 2
		if n == 0 {
			want = 0
		}
		if sum.Load() != want {
			t.Errorf("n=%d: sum = %d, want %d", n, sum.Load(), want)
		}
	}
}

func TestParallelChunks(t *testing.T) {
	n, chunk := 1000, 64
	seen := make([]int32, n)
	chunks := make([]int32, ChunkCount(n, chunk))
	ParallelChunks(n, chunk, func(c, start, end int) {
		atomic.AddInt32(&chunks[c], 1)
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})
	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d visited %d times", i, v)
		}
	}
	for c, v := range chunks {
		if v != 1 {
			t.Fatalf("chunk %d visited %d times", c, v)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(float32(1.5), 0, 3) != 1.5 {
		t.Error("clamp")
	}
	if Lerp(float32(0), 10, 0.25) != 2.5 {
		t.Error("lerp")
	}
}
