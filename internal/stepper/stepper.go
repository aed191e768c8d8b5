// Package stepper implements the adaptive-Δt integrator: it converts
// the force vector a back end produces into committed positions and
// velocities, rescaling the time step so the largest per-body
// displacement in a tick stays inside a calibrated window.
package stepper

import (
	"github.com/cwbudde/gravsim/internal/backend"
	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// Displacement window, in meters, that the adaptive step size targets.
const (
	MinDisplacement = 1e3
	MaxDisplacement = 100e3
)

// InitialDt is the time step a fresh Stepper starts from, in seconds.
const InitialDt = 60.0

// Stepper holds the persistent time-step state. Δt survives across
// ticks: it tracks system dynamics, so the common case converges in a
// single inner iteration.
type Stepper struct {
	dt float64
}

// New returns a Stepper with Δt initialized to InitialDt.
func New() *Stepper {
	return &Stepper{dt: InitialDt}
}

// Dt returns the current time step.
func (st *Stepper) Dt() float64 {
	return st.dt
}

// Step runs one adaptive-Δt iteration against b and s: it computes
// forces once, then repeatedly derives trial velocities/positions at
// the current Δt and rescales Δt until the largest displacement falls
// within [MinDisplacement, MaxDisplacement], then commits the trial
// state into s. It returns the Δt that was used.
func (st *Stepper) Step(s *body.Store, b backend.Backend) float64 {
	n := s.Len()
	if n == 0 {
		return st.dt
	}

	forces := b.Forces(s)
	var trialV, trialP []vec2.Vec2

	for {
		dV := b.Velocities(s, forces, st.dt)
		trialV = make([]vec2.Vec2, n)
		trialP = make([]vec2.Vec2, n)

		maxTravel := 0.0
		for i := 0; i < n; i++ {
			v := s.Velocity(i).Add(dV[i])
			p := s.Pos(i).Add(v.Scale(st.dt))
			trialV[i] = v
			trialP[i] = p

			travel := vec2.Distance(s.Pos(i), p)
			if travel > maxTravel {
				maxTravel = travel
			}
		}

		if maxTravel == 0 {
			// No body moved at all (e.g. a single body with no net
			// force): there is nothing to rescale Δt against, so the
			// current Δt is accepted as-is rather than looping forever
			// or dividing by zero.
			break
		}
		if maxTravel > MaxDisplacement {
			st.dt = st.dt * MaxDisplacement / maxTravel
			continue
		}
		if maxTravel < MinDisplacement {
			st.dt = st.dt * MinDisplacement / maxTravel
			continue
		}
		break
	}

	for i := 0; i < n; i++ {
		s.SetPos(i, trialP[i])
		s.SetVelocity(i, trialV[i])
	}

	return st.dt
}

// StepBy repeatedly invokes Step, consuming the requested simulated
// duration, until the remaining target is not strictly positive. It
// returns the number of Step invocations performed.
func (st *Stepper) StepBy(s *body.Store, b backend.Backend, target float64) int {
	steps := 0
	for target > 0 {
		used := st.Step(s, b)
		target -= used
		steps++
	}
	return steps
}
