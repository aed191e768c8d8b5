// Package body holds the structure-of-arrays body store: the dense,
// column-oriented representation of every simulated body that the
// compute back ends iterate over.
package body

import (
	"errors"
	"fmt"

	"github.com/cwbudde/gravsim/internal/vec2"
)

// DefaultInitialCapacity mirrors the reserve hint used by the store
// this package is modeled on, so a fresh simulation does not reallocate
// its columns on every one of the first few thousand insertions.
const DefaultInitialCapacity = 10000

// ErrIndexOutOfRange is returned by index-addressed operations when the
// index does not name a live body.
var ErrIndexOutOfRange = errors.New("body: index out of range")

// Body is a single materialized body value, as returned by Get.
type Body struct {
	ID       uint64
	Pos      vec2.Vec2
	Velocity vec2.Vec2
	Mass     float64
	Radius   float64
}

// Store is the column-oriented body container. All columns always have
// equal length; this invariant is maintained by Insert and Erase alone.
// An index is ephemeral: any Insert or Erase may invalidate it. The ID
// is the only stable handle to a body across ticks.
type Store struct {
	x, y   []float64
	vx, vy []float64
	mass   []float64
	radius []float64
	id     []uint64
}

// NewStore returns an empty store whose columns are pre-reserved to
// DefaultInitialCapacity.
func NewStore() *Store {
	return NewStoreWithCapacity(DefaultInitialCapacity)
}

// NewStoreWithCapacity returns an empty store whose columns are
// pre-reserved to cap.
func NewStoreWithCapacity(cap int) *Store {
	return &Store{
		x:      make([]float64, 0, cap),
		y:      make([]float64, 0, cap),
		vx:     make([]float64, 0, cap),
		vy:     make([]float64, 0, cap),
		mass:   make([]float64, 0, cap),
		radius: make([]float64, 0, cap),
		id:     make([]uint64, 0, cap),
	}
}

// Len returns the number of live bodies.
func (s *Store) Len() int {
	return len(s.x)
}

// Insert appends a new body to every column and returns its index.
func (s *Store) Insert(pos, velocity vec2.Vec2, mass, radius float64, id uint64) int {
	s.x = append(s.x, pos.X)
	s.y = append(s.y, pos.Y)
	s.vx = append(s.vx, velocity.X)
	s.vy = append(s.vy, velocity.Y)
	s.mass = append(s.mass, mass)
	s.radius = append(s.radius, radius)
	s.id = append(s.id, id)
	return len(s.x) - 1
}

// Erase removes the body at idx by overwriting it with the last live
// body in every column, then shrinking every column by one: swap-pop.
// This is O(1) and keeps every column dense, at the cost of reassigning
// which index maps to which identifier.
func (s *Store) Erase(idx int) error {
	n := len(s.x)
	if idx < 0 || idx >= n {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, idx, n)
	}
	last := n - 1
	s.x[idx] = s.x[last]
	s.y[idx] = s.y[last]
	s.vx[idx] = s.vx[last]
	s.vy[idx] = s.vy[last]
	s.mass[idx] = s.mass[last]
	s.radius[idx] = s.radius[last]
	s.id[idx] = s.id[last]

	s.x = s.x[:last]
	s.y = s.y[:last]
	s.vx = s.vx[:last]
	s.vy = s.vy[:last]
	s.mass = s.mass[:last]
	s.radius = s.radius[:last]
	s.id = s.id[:last]
	return nil
}

// Get materializes the body at idx.
func (s *Store) Get(idx int) (Body, error) {
	if idx < 0 || idx >= len(s.x) {
		return Body{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, idx, len(s.x))
	}
	return Body{
		ID:       s.id[idx],
		Pos:      vec2.Vec2{X: s.x[idx], Y: s.y[idx]},
		Velocity: vec2.Vec2{X: s.vx[idx], Y: s.vy[idx]},
		Mass:     s.mass[idx],
		Radius:   s.radius[idx],
	}, nil
}

// SetPos mutates the position column at idx.
func (s *Store) SetPos(idx int, pos vec2.Vec2) {
	s.x[idx] = pos.X
	s.y[idx] = pos.Y
}

// SetVelocity mutates the velocity column at idx.
func (s *Store) SetVelocity(idx int, v vec2.Vec2) {
	s.vx[idx] = v.X
	s.vy[idx] = v.Y
}

// SetMass mutates the mass column at idx.
func (s *Store) SetMass(idx int, mass float64) {
	s.mass[idx] = mass
}

// SetRadius mutates the radius column at idx.
func (s *Store) SetRadius(idx int, radius float64) {
	s.radius[idx] = radius
}

// IDAt returns the stable identifier of the body currently at idx.
func (s *Store) IDAt(idx int) uint64 {
	return s.id[idx]
}

// X returns a borrowed view of the x column, for back-end use.
func (s *Store) X() []float64 { return s.x }

// Y returns a borrowed view of the y column, for back-end use.
func (s *Store) Y() []float64 { return s.y }

// VX returns a borrowed view of the vx column, for back-end use.
func (s *Store) VX() []float64 { return s.vx }

// VY returns a borrowed view of the vy column, for back-end use.
func (s *Store) VY() []float64 { return s.vy }

// Mass returns a borrowed view of the mass column, for back-end use.
func (s *Store) Mass() []float64 { return s.mass }

// Radius returns a borrowed view of the radius column, for back-end use.
func (s *Store) Radius() []float64 { return s.radius }

// IDs returns a borrowed view of the identifier column.
func (s *Store) IDs() []uint64 { return s.id }

// Pos returns the position of the body at idx as a vec2.
func (s *Store) Pos(idx int) vec2.Vec2 {
	return vec2.Vec2{X: s.x[idx], Y: s.y[idx]}
}

// Velocity returns the velocity of the body at idx as a vec2.
func (s *Store) Velocity(idx int) vec2.Vec2 {
	return vec2.Vec2{X: s.vx[idx], Y: s.vy[idx]}
}
