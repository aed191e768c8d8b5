// Package sim implements the threaded simulation controller: it owns
// the body store and back end, drives ticks on a dedicated goroutine,
// batches per-tick events into a tick packet, and publishes packets to
// any number of UI observers without ever blocking the simulation loop
// on a slow subscriber.
package sim

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/gravsim/internal/backend"
	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/collision"
	"github.com/cwbudde/gravsim/internal/events"
	"github.com/cwbudde/gravsim/internal/stepper"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// DefaultTickInterval is the cadence at which the worker goroutine
// runs a tick when none is configured explicitly.
const DefaultTickInterval = 20 * time.Millisecond

// Config configures a Controller.
type Config struct {
	TickInterval time.Duration
	Backend      backend.Backend
	Cleanup      func()
}

// Controller drives the simulation on its own goroutine, the Go
// equivalent of the reference implementation's dedicated calculations
// thread paired with a UI-thread timer.
type Controller struct {
	id       string
	store    *body.Store
	backend  backend.Backend
	cleanup  func()
	stepper  *stepper.Stepper
	bus      *events.Bus
	interval time.Duration

	// acc buffers the in-progress tick: Created events land here as
	// soon as AddBody runs (even between ticks), so that by the time a
	// tick is assembled, every Created for it already precedes the
	// Updated pass below.
	acc *tickAccumulator

	subMu       sync.RWMutex
	subscribers map[chan TickPacket]bool

	tickCount uint64
	nextID    atomic.Uint64
	frames    atomic.Int64 // ticks completed since the last fps sample
	fps       atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Controller over store using cfg. ID is a fresh
// run identifier, not a body identifier.
func New(store *body.Store, cfg Config) *Controller {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	c := &Controller{
		id:          uuid.NewString(),
		store:       store,
		backend:     cfg.Backend,
		cleanup:     cfg.Cleanup,
		stepper:     stepper.New(),
		bus:         events.NewBus(),
		interval:    interval,
		subscribers: make(map[chan TickPacket]bool),
		acc:         newTickAccumulator(),
	}
	return c
}

// ID returns the controller's run identifier.
func (c *Controller) ID() string { return c.id }

// Subscribe registers a channel to receive published tick packets. The
// channel is buffered so a momentarily slow UI thread does not block
// the worker; if the buffer is full when a packet is ready, that
// subscriber's packet is dropped rather than stalling the tick loop.
func (c *Controller) Subscribe() chan TickPacket {
	ch := make(chan TickPacket, 4)
	c.subMu.Lock()
	c.subscribers[ch] = true
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a previously-subscribed channel.
func (c *Controller) Unsubscribe(ch chan TickPacket) {
	c.subMu.Lock()
	if c.subscribers[ch] {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.subMu.Unlock()
}

func (c *Controller) publish(packet TickPacket) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for ch := range c.subscribers {
		select {
		case ch <- packet:
		default:
			slog.Warn("tick packet dropped, subscriber channel full", "controller", c.id)
		}
	}
}

// FPS returns the most recently measured ticks-per-second.
func (c *Controller) FPS() int64 {
	return c.fps.Load()
}

// Start launches the worker goroutine. Stopping is cooperative: the
// in-flight tick always completes before the worker exits, so no
// partial-tick state is ever published.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.runFPSCounter(ctx)
	go c.run(ctx)
}

// Stop requests the worker goroutine to exit and blocks until it has.
func (c *Controller) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	if c.cleanup != nil {
		c.cleanup()
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick advances the simulation by interval of simulated time, calling
// Step until that target is consumed and resolving collisions after
// each Step, then publishes the resulting packet. It does not call
// Stepper.StepBy. Ordering within the tick is fixed: force, then velocity,
// then position commit, then collision detection, then collision
// resolution, then event emission, then publish.
func (c *Controller) tick() {
	target := c.interval.Seconds()

	collisionObserver := events.ObserverFunc(func(e events.Event) {
		switch e.Kind {
		case events.KindCollided:
			c.acc.addCollided(e.Survivor, e.Absorbed)
		case events.KindAnnihilated:
			c.acc.addAnnihilated(e.Body)
		}
	})
	collisionBus := events.NewBus()
	collisionBus.Subscribe(collisionObserver)

	for target > 0 {
		used := c.stepper.Step(c.store, c.backend)
		target -= used

		candidates := c.backend.Collisions(c.store)
		if len(candidates) > 0 {
			collision.Resolve(c.store, candidates, collisionBus)
		}
	}

	// Updated fires once per surviving body at the end of the tick, not
	// per sub-step, and only after every Created/Collided/Annihilated
	// for this tick has already been recorded above.
	for i := 0; i < c.store.Len(); i++ {
		b, _ := c.store.Get(i)
		c.acc.addUpdated(b)
		c.bus.Updated(b)
	}

	c.tickCount++
	c.frames.Add(1)
	packet := c.acc.snapshotAndClear(c.tickCount, c.stepper.Dt(), nowFunc())
	c.publish(packet)
}

// AddBody inserts a new body, fires a created event, and returns its
// stable identifier. Identifiers are assigned monotonically starting
// at 1 and are never reused within a run; 0 is reserved as "invalid"
// and is never handed out.
func (c *Controller) AddBody(pos, velocity vec2.Vec2, mass, radius float64) uint64 {
	id := c.nextID.Add(1)
	c.store.Insert(pos, velocity, mass, radius, id)
	b, _ := c.store.Get(c.store.Len() - 1)
	c.bus.Created(b)
	c.acc.addCreated(b)
	return id
}

func (c *Controller) runFPSCounter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := c.frames.Swap(0)
			c.fps.Store(n)
		}
	}
}

// nowFunc is indirected so tests can freeze time if needed.
var nowFunc = time.Now
