package sim

import (
	"reflect"
	"testing"

	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

type recordingScene struct {
	calls []string
}

func (r *recordingScene) Add(id uint64, pos vec2.Vec2, radius float64) {
	r.calls = append(r.calls, "add")
}
func (r *recordingScene) Remove(id uint64) {
	r.calls = append(r.calls, "remove")
}
func (r *recordingScene) SetPos(id uint64, pos vec2.Vec2) {
	r.calls = append(r.calls, "setpos")
}
func (r *recordingScene) SetRadius(id uint64, radius float64) {
	r.calls = append(r.calls, "setradius")
}

func TestReplayAppliesEachKindInOrder(t *testing.T) {
	scene := &recordingScene{}
	packet := TickPacket{
		Created:     []body.Body{{ID: 1}},
		Updated:     []body.Body{{ID: 2}},
		Collided:    []MergedPair{{Survivor: body.Body{ID: 3}, Absorbed: body.Body{ID: 4}}},
		Annihilated: []body.Body{{ID: 4}},
	}

	Replay(scene, packet)

	want := []string{"add", "setpos", "setradius", "remove"}
	if !reflect.DeepEqual(scene.calls, want) {
		t.Errorf("calls = %v, want %v", scene.calls, want)
	}
}

func TestReplayEmptyPacketNoCalls(t *testing.T) {
	scene := &recordingScene{}
	Replay(scene, TickPacket{})
	if len(scene.calls) != 0 {
		t.Errorf("calls = %v, want none", scene.calls)
	}
}
