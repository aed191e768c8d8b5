package main

import (
	"context"
	"fmt"
	"log/slog"
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
)

var (
	serveAddr string
	serveCfg  = config.Default()
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation and expose its tick stream over HTTP/websocket",
	RunE:  runServe,
}

func init() {
	def := config.Default()
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8080", "HTTP bind address")
	serveCmd.Flags().StringVar(&serveCfg.Backend, "backend", def.Backend, "Force backend: scalar, simd, gpu")
	serveCmd.Flags().IntVar(&serveCfg.BodyCapacity, "bodies", 200, "Number of randomly seeded bodies")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := serveCfg.Validate(); err != nil {
		return err
	}

	be, cleanup, err := backend.New(serveCfg.Backend, serveCfg.Workers)
	if err != nil {
		return fmt.Errorf("constructing backend: %w", err)
	}

	controller := sim.New(body.NewStoreWithCapacity(serveCfg.BodyCapacity), sim.Config{Backend: be, Cleanup: cleanup})
	seedBodies(controller, serveCfg.BodyCapacity)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok fps=%d\n", controller.FPS())
	})
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

	srv := &http.Server{Addr: serveAddr, Handler: mux}
	serverErrors := make(chan error, 1)
	go func() { serverErrors <- srv.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller.Start(ctx)
	slog.Info("serving simulation", "addr", serveAddr, "backend", serveCfg.Backend)
	fmt.Printf("Listening on http://%s (ws: /ws, health: /healthz)\n", serveAddr)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	controller.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
