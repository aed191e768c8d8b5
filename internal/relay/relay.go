// Package relay publishes simulation tick packets to websocket
// clients. It is the concrete, testable stand-in for the scene/UI
// boundary: it moves tick packets to the process boundary and stops,
// it never renders anything itself.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/gravsim/internal/sim"
)

const (
	writeWait      = 1 * time.Second
	pingResolution = 200 * time.Millisecond
	pongWait       = pingResolution * 4
	// publishResolution throttles outgoing packets so a slow client
	// only ever sees the latest tick rather than a growing backlog.
	publishResolution = 20 * time.Millisecond
)

var upgrader = websocket.Upgrader{}

// ErrPongDeadlineExceeded indicates the peer stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("relay: client disconnect, pong deadline exceeded")

// Client publishes one controller's tick packets to a single upgraded
// websocket connection.
type Client struct {
	updates <-chan sim.TickPacket
	conn    *websocket.Conn
	rootCtx context.Context
}

// Upgrade upgrades an HTTP request to a websocket and returns a Client
// that will publish updates to it once Sync is called.
func Upgrade(updates <-chan sim.TickPacket, w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}
	return &Client{updates: updates, conn: conn, rootCtx: r.Context()}, nil
}

// Sync runs the read/ping/publish trio until the client disconnects or
// an unrecoverable error occurs.
func (cli *Client) Sync() error {
	group, ctx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error { return cli.readLoop(ctx) })
	group.Go(func() error { return cli.pingLoop(ctx) })
	group.Go(func() error { return cli.publishLoop(ctx) })

	return group.Wait()
}

// readLoop exists only to drive the websocket's control-frame
// handling (pong processing); this relay is unidirectional and
// discards any application data a client sends.
func (cli *Client) readLoop(ctx context.Context) error {
	for {
		if _, _, err := cli.conn.ReadMessage(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (cli *Client) pingLoop(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.conn.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	ticker := channerics.NewTicker(ctx.Done(), pingResolution)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker:
			if time.Since(last) > pongWait {
				return ErrPongDeadlineExceeded
			}
			_ = cli.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cli.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("relay: ping failed: %w", err)
			}
		case <-pong:
			last = time.Now()
		}
	}
}

func (cli *Client) publishLoop(ctx context.Context) error {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case packet, ok := <-cli.updates:
			if !ok {
				return nil
			}
			if time.Since(last) < publishResolution {
				continue
			}
			last = time.Now()

			if err := cli.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("relay: set deadline: %w", err)
			}
			if err := cli.conn.WriteJSON(packet); err != nil {
				return fmt.Errorf("relay: publish: %w", err)
			}
		}
	}
}
