// Package backend defines the force/velocity/collision capability set
// and the factory that selects among its implementations (scalar,
// SIMD, GPU), mirroring the way renderer back ends are selected in the
// circle-fitting pipeline this module grew out of.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// G is the gravitational constant, N·m²/kg².
const G = 6.6732e-11

// Kind identifies a back-end implementation.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindSIMD   Kind = "simd"
	KindGPU    Kind = "gpu"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known back end.
	ErrUnknownBackend = errors.New("backend: unknown kind")
	// ErrBackendUnavailable indicates the back end is not available in this build or environment.
	ErrBackendUnavailable = errors.New("backend: unavailable")
	// ErrBackendNotImplemented names a back end that is known but has no
	// implementation. New does not return it: a back end left out of this
	// build (the GPU back end without the gpu tag) reports ErrBackendUnavailable.
	ErrBackendNotImplemented = errors.New("backend: not implemented in this build")
)

// CollisionPair names an unordered pair of overlapping body indices,
// i < j, as produced by Collisions.
type CollisionPair struct {
	I, J int
}

// Backend is the capability set every force-computation implementation
// provides. Dynamic dispatch across this interface is invoked once per
// tick per operation, never in the inner pairwise loop.
type Backend interface {
	// Forces returns the net gravitational force on every body in s,
	// indexed in lock-step with the store.
	Forces(s *body.Store) []vec2.Vec2

	// Velocities returns forces[i] · (dt / mass[i]) for every body.
	Velocities(s *body.Store, forces []vec2.Vec2, dt float64) []vec2.Vec2

	// Collisions returns every unordered pair (i, j), i < j, whose
	// bodies currently overlap.
	Collisions(s *body.Store) []CollisionPair
}

var noopCleanup = func() {}

// Normalize maps arbitrary user input to a canonical back-end kind.
func Normalize(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "scalar", "cpu":
		return KindScalar
	case "simd", "vector", "avx", "avx2", "neon":
		return KindSIMD
	case "gpu", "opencl", "cl":
		return KindGPU
	default:
		return Kind(name)
	}
}

// Supported returns the back-end kinds understood by the factory.
func Supported() []Kind {
	return []Kind{KindScalar, KindSIMD, KindGPU}
}

// New constructs the requested back end and returns a cleanup hook that
// is never nil: it releases external resources for back ends that hold
// them (the GPU back end's device context) and does nothing otherwise.
func New(name string, workers int) (Backend, func(), error) {
	kind := Normalize(name)

	switch kind {
	case KindScalar:
		return newScalarBackend(workers), noopCleanup, nil
	case KindSIMD:
		return newSIMDBackend(workers), noopCleanup, nil
	case KindGPU:
		return newGPUBackend()
	default:
		return nil, noopCleanup, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}

// VelocitiesCommon is the per-body transform shared by every back end:
// Velocities(F, dt)[i] = F[i] · dt / mass[i]. Exposed as a free function
// so each back-end's Velocities method can share one implementation
// rather than re-deriving it.
func VelocitiesCommon(s *body.Store, forces []vec2.Vec2, dt float64) []vec2.Vec2 {
	mass := s.Mass()
	out := make([]vec2.Vec2, len(forces))
	for i, f := range forces {
		out[i] = f.Scale(dt / mass[i])
	}
	return out
}
