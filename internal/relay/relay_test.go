package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwbudde/gravsim/internal/sim"
)

// TestUpgradeAndPublish drives a real websocket round trip: a server
// publishes a tick packet through a Client, and a plain gorilla/
// websocket client reads it back.
func TestUpgradeAndPublish(t *testing.T) {
	updates := make(chan sim.TickPacket, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, err := Upgrade(updates, w, r)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		_ = client.Sync()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	updates <- sim.TickPacket{Tick: 7}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got sim.TickPacket
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Tick != 7 {
		t.Errorf("Tick = %d, want 7", got.Tick)
	}
}

func TestUpgradeRejectsPlainHTTP(t *testing.T) {
	updates := make(chan sim.TickPacket)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := Upgrade(updates, w, r); err == nil {
			t.Error("Upgrade over a plain HTTP request should fail")
		}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
}
