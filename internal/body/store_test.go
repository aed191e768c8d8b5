package body

import (
	"errors"
	"testing"

	"github.com/cwbudde/gravsim/internal/vec2"
)

func TestInsertGet(t *testing.T) {
	s := NewStoreWithCapacity(4)
	idx := s.Insert(vec2.Vec2{X: 1, Y: 2}, vec2.Vec2{X: 3, Y: 4}, 5, 6, 42)

	if idx != 0 {
		t.Fatalf("Insert index = %d, want 0", idx)
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}

	b, err := s.Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := Body{ID: 42, Pos: vec2.Vec2{X: 1, Y: 2}, Velocity: vec2.Vec2{X: 3, Y: 4}, Mass: 5, Radius: 6}
	if b != want {
		t.Errorf("Get = %+v, want %+v", b, want)
	}
}

func TestGetOutOfRange(t *testing.T) {
	s := NewStore()
	if _, err := s.Get(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Get(0) on empty store: err = %v, want ErrIndexOutOfRange", err)
	}
	if err := s.Erase(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Erase(0) on empty store: err = %v, want ErrIndexOutOfRange", err)
	}
}

// TestEraseSwapPop covers the identifier-stability guarantee: erasing a
// body relocates the last live body into the erased slot, so an index
// held across an Erase call may now name a different body, but every
// surviving identifier remains reachable by scanning IDs().
func TestEraseSwapPop(t *testing.T) {
	s := NewStore()
	ids := []uint64{10, 20, 30}
	for _, id := range ids {
		s.Insert(vec2.Vec2{X: float64(id)}, vec2.Zero, 1, 1, id)
	}

	if err := s.Erase(0); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if got := s.Len(); got != 2 {
		t.Fatalf("Len after erase = %d, want 2", got)
	}

	// The last body (id 30) was swapped into slot 0.
	if got := s.IDAt(0); got != 30 {
		t.Errorf("IDAt(0) after erase = %d, want 30", got)
	}
	if got := s.IDAt(1); got != 20 {
		t.Errorf("IDAt(1) after erase = %d, want 20", got)
	}

	remaining := map[uint64]bool{}
	for _, id := range s.IDs() {
		remaining[id] = true
	}
	if !remaining[20] || !remaining[30] || remaining[10] {
		t.Errorf("IDs() = %v, want {20, 30} without 10", s.IDs())
	}
}

func TestSetters(t *testing.T) {
	s := NewStore()
	s.Insert(vec2.Zero, vec2.Zero, 1, 1, 1)

	s.SetPos(0, vec2.Vec2{X: 9, Y: 9})
	s.SetVelocity(0, vec2.Vec2{X: 2, Y: 3})
	s.SetMass(0, 42)
	s.SetRadius(0, 7)

	b, _ := s.Get(0)
	if b.Pos != (vec2.Vec2{X: 9, Y: 9}) || b.Velocity != (vec2.Vec2{X: 2, Y: 3}) || b.Mass != 42 || b.Radius != 7 {
		t.Errorf("Get after setters = %+v", b)
	}
}
