package sim

import (
	"sync"
	"time"

	"github.com/cwbudde/gravsim/internal/body"
)

// MergedPair names a single collision resolution within a tick packet:
// survivor absorbed absorbed.
type MergedPair struct {
	Survivor body.Body
	Absorbed body.Body
}

// TickPacket is the bundle of created/updated/collided/annihilated
// events produced by one tick, published atomically to the UI thread.
type TickPacket struct {
	Tick        uint64
	Dt          float64
	Timestamp   time.Time
	Created     []body.Body
	Updated     []body.Body
	Collided    []MergedPair
	Annihilated []body.Body
}

// tickAccumulator buffers one in-progress tick packet. Each of its four
// sequences is guarded by its own mutex, matching the four
// independently-locked channels of the reference controller's tick
// struct: appends from back-end callbacks never contend with each
// other across kinds, only within one.
type tickAccumulator struct {
	createdMu sync.Mutex
	created   []body.Body

	updatedMu sync.Mutex
	updated   []body.Body

	collidedMu sync.Mutex
	collided   []MergedPair

	annihilatedMu sync.Mutex
	annihilated   []body.Body
}

func newTickAccumulator() *tickAccumulator {
	return &tickAccumulator{}
}

func (a *tickAccumulator) addCreated(b body.Body) {
	a.createdMu.Lock()
	a.created = append(a.created, b)
	a.createdMu.Unlock()
}

func (a *tickAccumulator) addUpdated(b body.Body) {
	a.updatedMu.Lock()
	a.updated = append(a.updated, b)
	a.updatedMu.Unlock()
}

func (a *tickAccumulator) addCollided(survivor, absorbed body.Body) {
	a.collidedMu.Lock()
	a.collided = append(a.collided, MergedPair{Survivor: survivor, Absorbed: absorbed})
	a.collidedMu.Unlock()
}

func (a *tickAccumulator) addAnnihilated(b body.Body) {
	a.annihilatedMu.Lock()
	a.annihilated = append(a.annihilated, b)
	a.annihilatedMu.Unlock()
}

// snapshotAndClear copies every sequence (each under its own lock) into
// a fresh TickPacket and resets the accumulator for the next tick.
func (a *tickAccumulator) snapshotAndClear(tick uint64, dt float64, now time.Time) TickPacket {
	a.createdMu.Lock()
	created := a.created
	a.created = nil
	a.createdMu.Unlock()

	a.updatedMu.Lock()
	updated := a.updated
	a.updated = nil
	a.updatedMu.Unlock()

	a.collidedMu.Lock()
	collided := a.collided
	a.collided = nil
	a.collidedMu.Unlock()

	a.annihilatedMu.Lock()
	annihilated := a.annihilated
	a.annihilated = nil
	a.annihilatedMu.Unlock()

	return TickPacket{
		Tick:        tick,
		Dt:          dt,
		Timestamp:   now,
		Created:     created,
		Updated:     updated,
		Collided:    collided,
		Annihilated: annihilated,
	}
}
