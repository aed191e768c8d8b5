// Package collision implements the two-phase collision resolution
// policy: candidate pairs are computed once against pre-tick geometry,
// then merged deterministically even when several candidates share a
// body.
package collision

import (
	"math"
	"sort"

	"github.com/cwbudde/gravsim/internal/backend"
	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/events"
)

// Resolve applies candidates (as produced by a Backend's Collisions
// call, taken against the store's pre-resolution state) to s: pairs
// are walked in listed order, skipping any pair that already names an
// absorbed index. Each merge assigns the heavier body (ties broken by
// lower index) as survivor, with momentum-conserving velocity, summed
// mass, and volume-conserving radius, then publishes Collided followed
// by Annihilated on bus. Absorbed indices are erased from s in
// descending order once every candidate has been considered, so
// swap-pop never invalidates a pending removal.
func Resolve(s *body.Store, candidates []backend.CollisionPair, bus *events.Bus) {
	if len(candidates) == 0 {
		return
	}

	removed := make(map[int]bool)

	for _, c := range candidates {
		if removed[c.I] || removed[c.J] {
			continue
		}
		survivorIdx, absorbedIdx := merge(s, c.I, c.J)
		removed[absorbedIdx] = true

		survivor, _ := s.Get(survivorIdx)
		absorbed, _ := s.Get(absorbedIdx)
		if bus != nil {
			bus.Collided(survivor, absorbed)
			bus.Annihilated(absorbed)
		}
	}

	toErase := make([]int, 0, len(removed))
	for idx := range removed {
		toErase = append(toErase, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(toErase)))
	for _, idx := range toErase {
		_ = s.Erase(idx)
	}
}

// merge resolves one colliding pair in place, mutating the survivor's
// columns, and returns (survivorIndex, absorbedIndex).
func merge(s *body.Store, i, j int) (survivorIdx, absorbedIdx int) {
	mi, mj := s.Mass()[i], s.Mass()[j]

	heavy, light := i, j
	switch {
	case mj > mi:
		heavy, light = j, i
	case mj == mi:
		if j < i {
			heavy, light = j, i
		}
	}

	mh, ml := s.Mass()[heavy], s.Mass()[light]
	vh, vl := s.Velocity(heavy), s.Velocity(light)
	rh, rl := s.Radius()[heavy], s.Radius()[light]

	newMass := mh + ml
	newVelocity := vh.Scale(mh).Add(vl.Scale(ml)).Scale(1 / newMass)
	newRadius := math.Cbrt(rh*rh*rh + rl*rl*rl)

	s.SetMass(heavy, newMass)
	s.SetVelocity(heavy, newVelocity)
	s.SetRadius(heavy, newRadius)

	return heavy, light
}
