package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nodeclass/internal/handler"
	"nodeclass/internal/hub"
	"nodeclass/internal/loader"
	"nodeclass/internal/service"
	"nodeclass/internal/watcher"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event stream",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.log
	log.WithField("config", a.cfg.Summary()).Info("starting nodeclass")

	// Forward service events to SSE clients
	sseHub := hub.New(log)
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	a.bus.Subscribe(eventChan)
	defer a.bus.Unsubscribe(eventChan)
	go func() {
		for {
			select {
			case event := <-eventChan:
				sseHub.Publish(string(event.Type), event.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()

	if path := a.cfg.Seed.Path; path != "" {
		seeds := loader.New(a.svc, log)
		if _, err := seeds.Load(ctx, path); err != nil {
			return err
		}
		if a.cfg.Seed.Watch {
			w := watcher.New(path, log, func() {
				if _, err := seeds.Load(ctx, path); err != nil {
					log.WithError(err).Error("seed reload failed")
				}
			})
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("seed watcher stopped")
				}
			}()
		}
	}

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(handler.New(a.svc, log), sseHub),
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	log.Info("server stopped")
	return nil
}
