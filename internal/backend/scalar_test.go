package backend

import (
	"math"
	"testing"

	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// satelliteScene builds Scenario A: 32 satellites on the x-axis around
// one Earth-mass body at the origin.
func satelliteScene() *body.Store {
	s := body.NewStoreWithCapacity(32)
	s.Insert(vec2.Zero, vec2.Zero, 5.9736e24, 6371e3, 1)

	for i := 1; i <= 31; i++ {
		sign := 1.0
		if (i+1)%2 == 0 {
			sign = -1.0
		}
		pos := vec2.Vec2{X: 38440000 * float64(i), Y: 0}
		vel := vec2.Vec2{X: 0, Y: sign * 1022}
		s.Insert(pos, vel, 7.347673e22, 1737100, uint64(i+1))
	}
	return s
}

// closeULP reports whether a and b agree to within tolerance
// units-in-the-last-place, the same bit-pattern-distance check the
// bench subcommand uses to cross-check back ends.
func closeULP(a, b float64, tolerance int) bool {
	if a == b {
		return true
	}
	ai := int64(math.Float64bits(a))
	bi := int64(math.Float64bits(b))
	if ai < 0 {
		ai = int64(math.MinInt64) - ai
	}
	if bi < 0 {
		bi = int64(math.MinInt64) - bi
	}
	diff := ai - bi
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(tolerance)
}

func almostEqual(a, b, relTol float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff/scale <= relTol
}

func TestScalarForcesScenarioA(t *testing.T) {
	s := satelliteScene()
	be := newScalarBackend(0)
	forces := be.Forces(s)

	cases := []struct {
		idx  int
		want float64
	}{
		{0, 3.1977106592602337e22},
		{1, -1.9429197577020984e22},
		{31, -4.1369798775797501e20},
	}
	for _, c := range cases {
		if !almostEqual(forces[c.idx].X, c.want, 1e-9) {
			t.Errorf("forces[%d].X = %v, want %v", c.idx, forces[c.idx].X, c.want)
		}
		if forces[c.idx].Y != 0 {
			t.Errorf("forces[%d].Y = %v, want 0", c.idx, forces[c.idx].Y)
		}
	}
}

// TestVelocitiesZeroDt covers Scenario B: velocities(F, 0) is the zero
// vector for every body regardless of the force input.
func TestVelocitiesZeroDt(t *testing.T) {
	s := satelliteScene()
	be := newScalarBackend(0)
	forces := be.Forces(s)

	vels := be.Velocities(s, forces, 0)
	for i, v := range vels {
		if v != vec2.Zero {
			t.Errorf("velocities[%d] = %v, want Zero", i, v)
		}
	}
}

// TestVelocitiesLinearity covers Scenario C: velocities(F, 1) equals
// F[i] / mass[i] component-wise.
func TestVelocitiesLinearity(t *testing.T) {
	s := satelliteScene()
	be := newScalarBackend(0)
	forces := be.Forces(s)
	vels := be.Velocities(s, forces, 1)

	cases := []struct {
		idx  int
		want float64
	}{
		{0, 5.353e-3},
		{1, -0.26442656},
		{31, -5.6303e-3},
	}
	for _, c := range cases {
		if !almostEqual(vels[c.idx].X, c.want, 1e-3) {
			t.Errorf("v[%d].X = %v, want ~%v", c.idx, vels[c.idx].X, c.want)
		}
	}

	mass := s.Mass()
	for i := range vels {
		want := forces[i].Scale(1 / mass[i])
		if !almostEqual(vels[i].X, want.X, 1e-12) || !almostEqual(vels[i].Y, want.Y, 1e-12) {
			t.Errorf("v[%d] = %v, want F[%d]/m[%d] = %v", i, vels[i], i, i, want)
		}
	}
}

func TestForcesFewerThanTwoBodiesNoPanic(t *testing.T) {
	s := body.NewStore()
	be := newScalarBackend(2)
	if got := be.Forces(s); len(got) != 0 {
		t.Errorf("Forces on empty store = %v, want empty", got)
	}

	s.Insert(vec2.Zero, vec2.Zero, 1, 1, 1)
	if got := be.Forces(s); len(got) != 1 || got[0] != vec2.Zero {
		t.Errorf("Forces on single body = %v, want [Zero]", got)
	}
}

func TestCollisionsOrderedAscending(t *testing.T) {
	s := body.NewStore()
	// Three mutually overlapping unit-radius bodies.
	s.Insert(vec2.Vec2{X: 0, Y: 0}, vec2.Zero, 1, 1, 1)
	s.Insert(vec2.Vec2{X: 1, Y: 0}, vec2.Zero, 1, 1, 2)
	s.Insert(vec2.Vec2{X: 0.5, Y: 0}, vec2.Zero, 1, 1, 3)

	be := newScalarBackend(4)
	pairs := be.Collisions(s)

	if len(pairs) == 0 {
		t.Fatal("expected overlapping pairs, got none")
	}
	for k := 1; k < len(pairs); k++ {
		prev, cur := pairs[k-1], pairs[k]
		if cur.I < prev.I || (cur.I == prev.I && cur.J < prev.J) {
			t.Fatalf("Collisions not ascending: %v before %v", prev, cur)
		}
	}
}

func TestSIMDForcesAgreeWithScalar(t *testing.T) {
	s := satelliteScene()
	scalar := newScalarBackend(0)
	simd := newSIMDBackend(0)

	want := scalar.Forces(s)
	got := simd.Forces(s)

	if len(want) != len(got) {
		t.Fatalf("len mismatch: scalar %d, simd %d", len(want), len(got))
	}
	for i := range want {
		if !closeULP(want[i].X, got[i].X, 4) || !closeULP(want[i].Y, got[i].Y, 4) {
			t.Errorf("body %d: scalar %v, simd %v, not within 4 ULP", i, want[i], got[i])
		}
	}
}
