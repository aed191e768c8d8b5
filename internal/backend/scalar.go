package backend

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

func sqrt(v float64) float64 { return math.Sqrt(v) }

// scalarBackend is the reference double-nested-loop implementation. The
// pairwise loop is split across a worker pool; each worker accumulates
// into a private table so the parallel loop never writes to shared
// memory, then the main goroutine reduces the tables in worker order.
// The reduction order is fixed so results are reproducible regardless
// of goroutine scheduling.
type scalarBackend struct {
	workers int
}

func newScalarBackend(workers int) *scalarBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &scalarBackend{workers: workers}
}

// Forces computes the net gravitational force on every body via an
// O(N²) pairwise loop, halved by Newton's third law: for i < j, the
// force on i and the negated force on j are derived from one
// computation.
func (b *scalarBackend) Forces(s *body.Store) []vec2.Vec2 {
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

	private := make([][]vec2.Vec2, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		private[w] = make([]vec2.Vec2, n)
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			table := private[worker]
			for i := worker; i < n-1; i += workers {
				forcesFor(s, i, table)
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

// forcesFor accumulates, into table, the contribution of every pair
// (i, j) with j > i: the force on i and the equal-and-opposite force on
// j, so the i loop only ever needs to walk the upper triangle.
func forcesFor(s *body.Store, i int, table []vec2.Vec2) {
	x, y, mass := s.X(), s.Y(), s.Mass()
	n := len(x)
	xi, yi, mi := x[i], y[i], mass[i]

	for j := i + 1; j < n; j++ {
		xj, yj, mj := x[j], y[j], mass[j]

		dx := xj - xi
		dy := yj - yi
		dist2 := dx*dx + dy*dy
		if dist2 == 0 {
			continue
		}

		dist := sqrt(dist2)
		fg := (G * mi) * (mj / dist2)
		fv := vec2.Vec2{X: dx / dist, Y: dy / dist}.Scale(fg)

		table[i] = table[i].Add(fv)
		table[j] = table[j].Sub(fv)
	}
}

// Velocities implements the shared per-body transform.
func (b *scalarBackend) Velocities(s *body.Store, forces []vec2.Vec2, dt float64) []vec2.Vec2 {
	return VelocitiesCommon(s, forces, dt)
}

// Collisions scans all unordered pairs for radius overlap, distributing
// the scan across the worker pool with each worker appending to a
// private candidate list, then concatenating the lists in worker order
// (the same per-thread-private-then-concatenate pattern used by
// Forces), required so the candidate order is deterministic.
func (b *scalarBackend) Collisions(s *body.Store) []CollisionPair {
	n := s.Len()
	if n < 2 {
		return nil
	}

	workers := b.workers
	if workers > n-1 {
		workers = n - 1
	}
	if workers < 1 {
		workers = 1
	}

	private := make([][]CollisionPair, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			private[worker] = collisionsFor(s, worker, workers)
		}(w)
	}
	wg.Wait()

	var result []CollisionPair
	for w := 0; w < workers; w++ {
		result = append(result, private[w]...)
	}

	// The per-thread interleave above distributes rows of i round-robin
	// across workers, which does not itself yield ascending (i, j)
	// order; the collision resolver requires ascending-index scan
	// order, so the concatenated list is sorted once here rather than
	// pushing ordering concerns onto every caller.
	sort.Slice(result, func(a, c int) bool {
		if result[a].I != result[c].I {
			return result[a].I < result[c].I
		}
		return result[a].J < result[c].J
	})
	return result
}

func collisionsFor(s *body.Store, start, stride int) []CollisionPair {
	x, y, radius := s.X(), s.Y(), s.Radius()
	n := len(x)
	var out []CollisionPair

	for i := start; i < n-1; i += stride {
		xi, yi, ri := x[i], y[i], radius[i]
		for j := i + 1; j < n; j++ {
			dx := x[j] - xi
			dy := y[j] - yi
			dist := sqrt(dx*dx + dy*dy)
			if ri+radius[j] > dist {
				out = append(out, CollisionPair{I: i, J: j})
			}
		}
	}
	return out
}
