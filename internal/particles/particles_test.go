package particles

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/flex"
)

func TestAllocateReusesLowestFirst(t *testing.T) {
	var d Data
	r := d.Allocate(6)
	if r.Len() != 6 || d.Len() != 6 {
		t.Fatalf("allocated %d of %d slots", r.Len(), d.Len())
	}

	if err := d.Release(Range{Indices: []int{4, 1}}); err != nil {
		t.Fatal(err)
	}
	r2 := d.Allocate(3)
	want := []int{1, 4, 6}
	for i, idx := range r2.Indices {
		if idx != want[i] {
			t.Fatalf("indices = %v, want %v", r2.Indices, want)
		}
	}
	if d.Len() != 7 {
		t.Errorf("len = %d", d.Len())
	}
	if err := d.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestReleaseReferenced(t *testing.T) {
	var d Data
	r := d.Allocate(3)
	if err := d.Retain(r.Indices[1]); err != nil {
		t.Fatal(err)
	}
	err := d.Release(r)
	if !errors.Is(err, flex.ErrParticleReferenced) {
		t.Fatalf("err = %v, want ErrParticleReferenced", err)
	}
	// all-or-nothing
	for _, i := range r.Indices {
		if !d.Active[i] {
			t.Errorf("particle %d released despite error", i)
		}
	}

	d.Unretain(r.Indices[1])
	if err := d.Release(r); err != nil {
		t.Fatal(err)
	}
	if err := d.Release(r); !errors.Is(err, flex.ErrIndexOutOfRange) {
		t.Errorf("double release err = %v", err)
	}
}

func TestValidateDataModel(t *testing.T) {
	var d Data
	d.Allocate(4)
	d.Radii = d.Radii[:2]

	err := d.Validate()
	var dm *flex.DataModelError
	if !errors.As(err, &dm) {
		t.Fatalf("err = %v, want *DataModelError", err)
	}
	if dm.Field != "Radii" || dm.Want != 4 || dm.Got != 2 {
		t.Errorf("got %+v", dm)
	}
	if !errors.Is(err, flex.ErrDataModel) {
		t.Error("DataModelError must unwrap to ErrDataModel")
	}
}

func TestDeltaAveraging(t *testing.T) {
	var d Data
	d.Allocate(1)
	d.AddPositionDelta(0, mgl32.Vec3{1, 0, 0})
	d.AddPositionDelta(0, mgl32.Vec3{3, 0, 0})
	d.ApplyPositionDelta(0, 1)
	if d.Positions[0][0] != 2 {
		t.Errorf("x = %v, want averaged 2", d.Positions[0][0])
	}
	if d.PositionCounts[0] != 0 || d.PositionDeltas[0] != (mgl32.Vec4{}) {
		t.Error("accumulator not cleared")
	}
}

func TestSetParticle(t *testing.T) {
	var d Data
	d.Allocate(1)
	err := d.Set(0, Particle{Position: mgl32.Vec3{1, 2, 3}, InvMass: 1, Radius: 0.5, Flags: flex.Fluid, Group: 3})
	if err != nil {
		t.Fatal(err)
	}
	if d.Position(0) != (mgl32.Vec3{1, 2, 3}) || d.PrevPositions[0] != d.Positions[0] {
		t.Error("position not copied to previous state")
	}
	if !d.IsFluid(0) || flex.PhaseGroup(d.Phases[0]) != 3 {
		t.Error("phase not encoded")
	}
	if d.Radii[0][2] != 0.5 {
		t.Errorf("radii = %v", d.Radii[0])
	}
	if err := d.Set(5, Particle{}); !errors.Is(err, flex.ErrIndexOutOfRange) {
		t.Errorf("out of range set err = %v", err)
	}
}

func TestNewDataCapacityIsAHint(t *testing.T) {
	d := NewData(4)
	if d.Len() != 0 || cap(d.Positions) < 4 || cap(d.MaterialIndices) < 4 {
		t.Fatalf("len = %d, cap = %d", d.Len(), cap(d.Positions))
	}

	r := d.Allocate(10)
	if r.Len() != 10 || d.Len() != 10 {
		t.Fatalf("allocated %d of %d slots", r.Len(), d.Len())
	}
	if err := d.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestResolveMaterials(t *testing.T) {
	var d Data
	r := d.Allocate(3)
	live := flex.Handle{Index: 2, Generation: 1}
	stale := flex.Handle{Index: 0, Generation: 0}
	for k, m := range []flex.Handle{live, stale, flex.InvalidHandle} {
		if err := d.Set(r.Indices[k], Particle{InvMass: 1, Material: m}); err != nil {
			t.Fatal(err)
		}
	}

	d.ResolveMaterials(func(h flex.Handle) (int, error) {
		if h == live {
			return 5, nil
		}
		return -1, flex.ErrStaleHandle
	})

	want := []int32{5, -1, -1}
	for k, i := range r.Indices {
		if got := d.MaterialIndices[i]; got != want[k] {
			t.Errorf("material index %d = %d, want %d", i, got, want[k])
		}
	}
}
