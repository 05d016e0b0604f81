package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vt-labs/tutor-live/internal/dotenv"
	"github.com/vt-labs/tutor-live/pkg/core/bus"
	"github.com/vt-labs/tutor-live/pkg/core/session"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
	"github.com/vt-labs/tutor-live/pkg/core/transport"
	"github.com/vt-labs/tutor-live/pkg/gateway/config"
	"github.com/vt-labs/tutor-live/pkg/gateway/handlers"
	gatewayserver "github.com/vt-labs/tutor-live/pkg/gateway/server"
	"github.com/vt-labs/tutor-live/pkg/store/postgres"
	"github.com/vt-labs/tutor-live/pkg/transport/livekitroom"
	"github.com/vt-labs/tutor-live/pkg/transport/realtime"
)

func buildEngine(cfg config.Config, b *bus.Bus, logger *slog.Logger) transport.Engine {
	switch cfg.Transport {
	case config.TransportLiveKit:
		return livekitroom.New(livekitroom.Config{
			URL:       cfg.LiveKitURL,
			APIKey:    cfg.LiveKitAPIKey,
			APISecret: cfg.LiveKitAPISecret,
		}, b, logger)
	case config.TransportRealtime:
		return realtime.New(realtime.Config{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.GeminiModel,
			SystemInstruction: cfg.GeminiSystemInstruction,
		}, b, logger)
	default:
		return nil
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The one event bus for the whole process. Everything downstream
	// receives it by injection.
	b := bus.New(logger)
	buffer := transcript.NewBuffer(logger, cfg.BufferSoftCap)
	engine := buildEngine(cfg, b, logger)

	var store *postgres.Store
	var pinger handlers.Pinger
	opts := session.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		ErrorLimit:     cfg.SessionErrorLimit,
		Logger:         logger,
	}
	if cfg.DatabaseURL != "" {
		store, err = postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		opts.Recorder = store
		pinger = store
	}

	orch := session.New(b, buffer, engine, opts)
	gw := gatewayserver.New(cfg, orch, buffer, pinger, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	logger.Info("starting tutord", "addr", cfg.Addr, "transport", string(cfg.Transport))

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()

	// Close the live session first so the final snapshot is recorded
	// before the store goes away.
	if err := orch.End(shutdownCtx); err != nil {
		logger.Warn("end session on shutdown failed", "error", err)
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("tutord stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "tutord: %v\n", err)
		return 1
	}

	if err := run(ctx, logger); err != nil {
		fmt.Fprintf(stderr, "tutord: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr))
}
