package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/adapters/feed"
	"github.com/dkeye/callbridge/internal/adapters/httpapi"
	"github.com/dkeye/callbridge/internal/adapters/radiosim"
	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/config"
	"github.com/dkeye/callbridge/internal/core"
)

func alertMode(name string) app.AlertMode {
	switch name {
	case "vibrate":
		return app.AlertVibrate
	case "tone":
		return app.AlertTone
	case "tone_vibrate":
		return app.AlertToneAndVibrate
	default:
		return app.AlertOff
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	hub := feed.NewHub()
	mgr := app.NewCallManager(core.SystemClock{}, hub, app.ManagerConfig{
		MergeDelay:             cfg.MergeDelay,
		MultipartyCapacity:     cfg.MultipartyCapacity,
		SwapAfterMerge:         cfg.SwapAfterMerge,
		EmergencyRetryInterval: cfg.EmergencyRetryInterval,
		EmergencyRetryBudget:   cfg.EmergencyRetryBudget,
	})
	defer mgr.Stop()

	route := radiosim.NewRoute(5, 10)
	mgr.SetAlertPlayer(app.NewAlertTonePlayer(route, alertMode(cfg.AlertMode)))

	radio := radiosim.NewControl()
	board := radiosim.NewSwitchboard(mgr, mgr.Queue().Post)

	r := httpapi.SetupRouter(ctx, cfg, mgr, board, radio, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("callbridge server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
