package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gravsim/internal/backend"
	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// benchCmd is the external benchmark driver: `<prog> <problem-size>`,
// one random population, the scalar back end as reference, every other
// back end available in this build timed and checked against it within
// 4 ULP.
var benchCmd = &cobra.Command{
	Use:   "bench <problem-size>",
	Short: "Benchmark and cross-check force back ends against a random population",
	Args:  cobra.ExactArgs(1),
	RunE:  runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	size, err := parsePositiveInt(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s bench <problem-size>\n", os.Args[0])
		os.Exit(1)
	}

	store := randomStore(size)

	reference, cleanup, err := backend.New(string(backend.KindScalar), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct reference backend: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	var refForces []vec2.Vec2
	elapsed(func() {
		refForces = reference.Forces(store)
	}, "scalar")

	for _, kind := range backend.Supported() {
		if kind == backend.KindScalar {
			continue
		}
		candidate, candidateCleanup, err := backend.New(string(kind), 0)
		if err != nil {
			// Unavailable back ends (e.g. no gpu build tag, no device)
			// are reported but do not fail the run.
			fmt.Fprintf(os.Stderr, "backend %s unavailable: %v\n", kind, err)
			continue
		}

		var forces []vec2.Vec2
		elapsed(func() {
			forces = candidate.Forces(store)
		}, string(kind))
		candidateCleanup()

		if !withinULP(refForces, forces, 4) {
			fmt.Println("Assertion failed: results differ too much")
			os.Exit(1)
		}
	}

	return nil
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid problem size: %q", s)
	}
	return n, nil
}

func randomStore(n int) *body.Store {
	s := body.NewStoreWithCapacity(n)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		pos := vec2.Vec2{X: rng.Float64(), Y: rng.Float64()}
		mass := rng.Float64()
		s.Insert(pos, vec2.Zero, mass, 1, uint64(i+1))
	}
	return s
}

func elapsed(fn func(), label string) {
	start := time.Now()
	fn()
	fmt.Printf("%s: Elapsed time: %d ns\n", label, time.Since(start).Nanoseconds())
}

// withinULP reports whether every component of a and b agrees to
// within tolerance units-in-the-last-place.
func withinULP(a, b []vec2.Vec2, tolerance int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !closeULP(a[i].X, b[i].X, tolerance) || !closeULP(a[i].Y, b[i].Y, tolerance) {
			return false
		}
	}
	return true
}

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
