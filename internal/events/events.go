// Package events implements the per-tick event bus: the four event
// kinds (created, updated, collided, annihilated) and their fan-out to
// registered observers.
package events

import "github.com/cwbudde/gravsim/internal/body"

// Kind identifies one of the four event kinds this bus carries.
type Kind int

const (
	KindCreated Kind = iota
	KindUpdated
	KindCollided
	KindAnnihilated
)

// Event is a single occurrence published to observers. Only the fields
// relevant to Kind are populated: Collided uses Survivor and Absorbed;
// Created/Updated/Annihilated use Body alone.
type Event struct {
	Kind     Kind
	Body     body.Body
	Survivor body.Body
	Absorbed body.Body
}

// Observer receives events as they are published. Implementations must
// not block significantly: the bus calls observers synchronously from
// the publishing goroutine.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Bus fans out events to every registered observer. Observers register
// once and stay registered for the run; the bus holds no reference
// back to anything that would create a retain cycle, only a flat list.
type Bus struct {
	observers []Observer
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers an observer for the lifetime of the bus.
func (b *Bus) Subscribe(o Observer) {
	b.observers = append(b.observers, o)
}

func (b *Bus) publish(e Event) {
	for _, o := range b.observers {
		o.OnEvent(e)
	}
}

// Created publishes a created event for a newly inserted body.
func (b *Bus) Created(bd body.Body) {
	b.publish(Event{Kind: KindCreated, Body: bd})
}

// Updated publishes an updated event for a surviving body, once per
// body at the end of a StepBy call.
func (b *Bus) Updated(bd body.Body) {
	b.publish(Event{Kind: KindUpdated, Body: bd})
}

// Collided publishes a collided event; callers must publish the
// matching Annihilated event for absorbed immediately afterward.
func (b *Bus) Collided(survivor, absorbed body.Body) {
	b.publish(Event{Kind: KindCollided, Survivor: survivor, Absorbed: absorbed})
}

// Annihilated publishes an annihilated event for a body removed by a
// collision merge.
func (b *Bus) Annihilated(bd body.Body) {
	b.publish(Event{Kind: KindAnnihilated, Body: bd})
}
