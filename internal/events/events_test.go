package events

import (
	"testing"

	"github.com/cwbudde/gravsim/internal/body"
)

func TestBusFanOutAndOrder(t *testing.T) {
	bus := NewBus()

	var first, second []Kind
	bus.Subscribe(ObserverFunc(func(e Event) { first = append(first, e.Kind) }))
	bus.Subscribe(ObserverFunc(func(e Event) { second = append(second, e.Kind) }))

	survivor := body.Body{ID: 1}
	absorbed := body.Body{ID: 2}

	bus.Created(survivor)
	bus.Updated(survivor)
	bus.Collided(survivor, absorbed)
	bus.Annihilated(absorbed)

	want := []Kind{KindCreated, KindUpdated, KindCollided, KindAnnihilated}
	for _, got := range [][]Kind{first, second} {
		if len(got) != len(want) {
			t.Fatalf("got %v events, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	}
}

func TestCollidedCarriesBothBodies(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(ObserverFunc(func(e Event) {
		if e.Kind == KindCollided {
			got = e
		}
	}))

	survivor := body.Body{ID: 10, Mass: 4}
	absorbed := body.Body{ID: 20, Mass: 1}
	bus.Collided(survivor, absorbed)

	if got.Survivor != survivor || got.Absorbed != absorbed {
		t.Errorf("Collided event = %+v, want Survivor=%+v Absorbed=%+v", got, survivor, absorbed)
	}
}
