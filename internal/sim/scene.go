package sim

import "github.com/cwbudde/gravsim/internal/vec2"

// Scene is the external UI-facing abstraction the controller replays
// tick packets onto. Everything visual is out of scope here; the
// controller depends only on these four operations.
type Scene interface {
	Add(id uint64, pos vec2.Vec2, radius float64)
	Remove(id uint64)
	SetPos(id uint64, pos vec2.Vec2)
	SetRadius(id uint64, radius float64)
}

// Replay drains one TickPacket onto scene: created bodies are added,
// updated bodies move, collided survivors resize, and annihilated
// bodies are removed. This is the UI-thread side of the boundary, and
// it never runs on the worker goroutine that produced packet.
func Replay(scene Scene, packet TickPacket) {
	for _, b := range packet.Created {
		scene.Add(b.ID, b.Pos, b.Radius)
	}
	for _, b := range packet.Updated {
		scene.SetPos(b.ID, b.Pos)
	}
	for _, pair := range packet.Collided {
		scene.SetRadius(pair.Survivor.ID, pair.Survivor.Radius)
	}
	for _, b := range packet.Annihilated {
		scene.Remove(b.ID)
	}
}
