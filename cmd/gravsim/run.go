package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gravsim/internal/backend"
	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/config"
	"github.com/cwbudde/gravsim/internal/relay"
	"github.com/cwbudde/gravsim/internal/sim"
	"github.com/cwbudde/gravsim/internal/vec2"
)

var (
	runCfg        = config.Default()
	runBodies     int
	runTickMillis int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation controller until interrupted",
	RunE:  runSimulate,
}

func init() {
	def := config.Default()
	runCmd.Flags().StringVar(&runCfg.Backend, "backend", def.Backend, "Force backend: scalar, simd, gpu")
	runCmd.Flags().IntVar(&runCfg.Workers, "workers", def.Workers, "Worker goroutines (0 = GOMAXPROCS)")
	runCmd.Flags().IntVar(&runBodies, "bodies", 200, "Number of randomly seeded bodies")
	runCmd.Flags().IntVar(&runTickMillis, "tick-interval", int(def.TickInterval/time.Millisecond), "Tick interval in milliseconds")
	runCmd.Flags().StringVar(&runCfg.RelayAddr, "relay-addr", def.RelayAddr, "If set, serve a websocket tick relay on this address")

	rootCmd.AddCommand(runCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	runCfg.TickInterval = time.Duration(runTickMillis) * time.Millisecond
	runCfg.BodyCapacity = runBodies
	if err := runCfg.Validate(); err != nil {
		return err
	}

	be, cleanup, err := backend.New(runCfg.Backend, runCfg.Workers)
	if err != nil {
		return fmt.Errorf("constructing backend: %w", err)
	}

	controller := sim.New(body.NewStoreWithCapacity(runCfg.BodyCapacity), sim.Config{
		TickInterval: runCfg.TickInterval,
		Backend:      be,
		Cleanup:      cleanup,
	})
	seedBodies(controller, runCfg.BodyCapacity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var relayServer *http.Server
	if runCfg.RelayAddr != "" {
		relayServer = startRelay(controller, runCfg.RelayAddr)
	}

	controller.Start(ctx)
	slog.Info("simulation started", "backend", runCfg.Backend, "bodies", runCfg.BodyCapacity)

	<-ctx.Done()
	slog.Info("shutdown signal received")
	controller.Stop()

	if relayServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = relayServer.Shutdown(shutdownCtx)
	}

	slog.Info("simulation stopped")
	return nil
}

func startRelay(controller *sim.Controller, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ch := controller.Subscribe()
		defer controller.Unsubscribe(ch)

		client, err := relay.Upgrade(ch, w, r)
		if err != nil {
			slog.Error("relay upgrade failed", "error", err)
			return
		}
		if err := client.Sync(); err != nil {
			slog.Debug("relay client disconnected", "error", err)
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("relay server error", "error", err)
		}
	}()
	return srv
}

// seedBodies populates the controller's starting population through
// AddBody, so every seeded body fires a Created event before the first
// tick's Updated pass; inserting straight into the store would leave a
// replaying client with SetPos/Remove calls for identifiers it was
// never told to Add.
func seedBodies(controller *sim.Controller, n int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < n; i++ {
		pos := vec2.Vec2{X: rng.Float64() * 1e11, Y: rng.Float64() * 1e11}
		vel := vec2.Vec2{X: rng.Float64()*2e3 - 1e3, Y: rng.Float64()*2e3 - 1e3}
		mass := 1e20 + rng.Float64()*1e24
		radius := 1e5 + rng.Float64()*1e6
		controller.AddBody(pos, vel, mass, radius)
	}
}
