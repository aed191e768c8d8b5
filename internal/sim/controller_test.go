package sim

import (
	"context"
	"testing"
	"time"

	"github.com/cwbudde/gravsim/internal/backend"
	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// zeroBackend reports zero force and no collisions, so a tick's only
// observable effect is the Updated pass and, for AddBody, Created.
type zeroBackend struct{}

func (zeroBackend) Forces(s *body.Store) []vec2.Vec2 {
	return make([]vec2.Vec2, s.Len())
}

func (zeroBackend) Velocities(s *body.Store, forces []vec2.Vec2, dt float64) []vec2.Vec2 {
	return backend.VelocitiesCommon(s, forces, dt)
}

func (zeroBackend) Collisions(s *body.Store) []backend.CollisionPair { return nil }

func TestAddBodyAssignsMonotonicIDs(t *testing.T) {
	store := body.NewStore()
	c := New(store, Config{Backend: zeroBackend{}})

	id1 := c.AddBody(vec2.Zero, vec2.Zero, 1, 1)
	id2 := c.AddBody(vec2.Vec2{X: 1}, vec2.Zero, 1, 1)

	if id1 != 1 || id2 != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", id1, id2)
	}
	if got := store.Len(); got != 2 {
		t.Errorf("store.Len() = %d, want 2", got)
	}
}

// TestTickOrdersCreatedBeforeUpdated covers the ordering guarantee: a
// body added between ticks must appear in Created before any Updated
// pass mentions it.
func TestTickOrdersCreatedBeforeUpdated(t *testing.T) {
	store := body.NewStore()
	c := New(store, Config{Backend: zeroBackend{}, TickInterval: 10 * time.Millisecond})
	ch := c.Subscribe()

	c.AddBody(vec2.Zero, vec2.Zero, 1, 1)
	c.tick()

	select {
	case got := <-ch:
		if len(got.Created) != 1 {
			t.Fatalf("Created = %v, want 1 entry", got.Created)
		}
		if len(got.Updated) != 1 {
			t.Fatalf("Updated = %v, want 1 entry", got.Updated)
		}
	default:
		t.Fatal("expected a published tick packet")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	store := body.NewStore()
	c := New(store, Config{Backend: zeroBackend{}})

	ch := c.Subscribe()
	c.publish(TickPacket{Tick: 1})

	select {
	case p := <-ch:
		if p.Tick != 1 {
			t.Errorf("Tick = %d, want 1", p.Tick)
		}
	default:
		t.Fatal("expected a buffered packet")
	}

	c.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	store := body.NewStore()
	cleaned := false
	c := New(store, Config{
		Backend:      zeroBackend{},
		TickInterval: 5 * time.Millisecond,
		Cleanup:      func() { cleaned = true },
	})

	ctx := context.Background()
	c.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	if !cleaned {
		t.Error("Cleanup was not invoked on Stop")
	}
	if c.tickCount == 0 {
		t.Error("expected at least one tick to have run")
	}
}
