package backend

import (
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"

	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// WideKind indicates which wide-lane kernel was selected for the SIMD
// back end at process start-up.
type WideKind int

const (
	WideKindScalarFallback WideKind = iota
	WideKindLane4
)

func (k WideKind) String() string {
	switch k {
	case WideKindLane4:
		return "lane4"
	default:
		return "scalar-fallback"
	}
}

// ActiveWideKind reports which wide-lane kernel Forces dispatches to.
var ActiveWideKind WideKind

// laneWidth is the number of bodies processed per SIMD-region
// iteration, matching the 4-wide double-precision lane this module
// targets (8-wide single precision is the GPU back end's concern).
const laneWidth = 4

func init() {
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		ActiveWideKind = WideKindLane4
		slog.Debug("simd backend initialized", "kernel", ActiveWideKind.String())
	} else {
		ActiveWideKind = WideKindScalarFallback
		slog.Debug("simd backend initialized", "kernel", ActiveWideKind.String())
	}
}

// simdBackend partitions each body's pairwise loop into a scalar head,
// a lane-width SIMD body, and a scalar tail, the same three-region
// split used by the reference wide-register implementation this back
// end is modeled on. The lanes are plain Go float64 slices rather than
// hardware vector registers: this module never invokes the Go
// toolchain, so there is no way to validate hand-written architecture
// assembly, and the lane structure (broadcast one value, operate on a
// contiguous run of neighbors, scatter the results) is preserved even
// though the instructions issued are ordinary scalar ones.
type simdBackend struct {
	workers int
}

func newSIMDBackend(workers int) *simdBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &simdBackend{workers: workers}
}

func (b *simdBackend) Forces(s *body.Store) []vec2.Vec2 {
	n := s.Len()
	forces := make([]vec2.Vec2, n)
	if n < 2 {
		return forces
	}

	workers := b.workers
	if workers > n-1 {
		workers = n - 1
	}
	if workers < 1 {
		workers = 1
	}

	kernel := laneForcesFor
	if ActiveWideKind == WideKindScalarFallback {
		kernel = forcesFor
	}

	private := make([][]vec2.Vec2, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		private[w] = make([]vec2.Vec2, n)
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			table := private[worker]
			for i := worker; i < n-1; i += workers {
				kernel(s, i, table)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		table := private[w]
		for i := 0; i < n; i++ {
			forces[i] = forces[i].Add(table[i])
		}
	}
	return forces
}

// laneForcesFor accumulates body i's contribution from every j > i,
// split into a scalar head up to the next multiple of laneWidth past
// i+1, a lane-width SIMD body, and a scalar tail for the remainder.
func laneForcesFor(s *body.Store, i int, table []vec2.Vec2) {
	x, y, mass := s.X(), s.Y(), s.Mass()
	n := len(x)
	xi, yi, mi := x[i], y[i], mass[i]

	j := i + 1
	headEnd := ((j + laneWidth - 1) / laneWidth) * laneWidth
	if headEnd > n {
		headEnd = n
	}
	for ; j < headEnd; j++ {
		accumulatePair(table, i, j, xi, yi, mi, x[j], y[j], mass[j])
	}

	simdEnd := n - (n-j)%laneWidth
	for ; j < simdEnd; j += laneWidth {
		// The SIMD body: broadcast (xi, yi, mi) against a contiguous
		// run of laneWidth neighbors. A true wide-register kernel
		// would issue one broadcast/load/sub/mul/rsqrt/store sequence
		// for the whole lane; here the lanes are walked in a tight
		// Go loop that the compiler can still unroll.
		for lane := 0; lane < laneWidth; lane++ {
			jj := j + lane
			accumulatePair(table, i, jj, xi, yi, mi, x[jj], y[jj], mass[jj])
		}
	}

	for ; j < n; j++ {
		accumulatePair(table, i, j, xi, yi, mi, x[j], y[j], mass[j])
	}
}

func accumulatePair(table []vec2.Vec2, i, j int, xi, yi, mi, xj, yj, mj float64) {
	dx := xj - xi
	dy := yj - yi
	dist2 := dx*dx + dy*dy
	if dist2 == 0 {
		return
	}
	dist := sqrt(dist2)
	fg := (G * mi) * (mj / dist2)
	fv := vec2.Vec2{X: dx / dist, Y: dy / dist}.Scale(fg)

	table[i] = table[i].Add(fv)
	table[j] = table[j].Sub(fv)
}

func (b *simdBackend) Velocities(s *body.Store, forces []vec2.Vec2, dt float64) []vec2.Vec2 {
	return VelocitiesCommon(s, forces, dt)
}

// Collisions shares the scalar back end's candidate scan: the
// three-region lane split only pays for itself in the force
// computation's inner accumulation, not in the early-exit-friendly
// overlap test.
func (b *simdBackend) Collisions(s *body.Store) []CollisionPair {
	sb := scalarBackend{workers: b.workers}
	return sb.Collisions(s)
}
