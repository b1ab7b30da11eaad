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

	"github.com/KingLuiBoi/GWENApp/internal/audio"
	"github.com/KingLuiBoi/GWENApp/internal/backend"
	"github.com/KingLuiBoi/GWENApp/internal/capsules"
	"github.com/KingLuiBoi/GWENApp/internal/config"
	"github.com/KingLuiBoi/GWENApp/internal/control"
	"github.com/KingLuiBoi/GWENApp/internal/location"
	"github.com/KingLuiBoi/GWENApp/internal/metrics"
	"github.com/KingLuiBoi/GWENApp/internal/permissions"
	"github.com/KingLuiBoi/GWENApp/internal/position"
	"github.com/KingLuiBoi/GWENApp/internal/reminders"
	"github.com/KingLuiBoi/GWENApp/internal/transcript"
	"github.com/KingLuiBoi/GWENApp/internal/voice"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "gwen-client",
		Short: "Voice-first assistant client daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	m := metrics.New()
	client := backend.New(cfg.Backend.BaseURL, logger)

	transcriber := transcript.NewAssemblyAIService(cfg.Voice.AssemblyAIKey, cfg.Voice.SampleRate, logger)
	speaker := audio.NewSpeaker(logger)
	auth := permissions.Static{
		Microphone: cfg.Permissions.Microphone,
		Location:   cfg.Permissions.Location,
	}

	voiceEngine := voice.NewEngine(transcriber, speaker, client, auth, m, cfg.Voice.WakePhrase, logger)
	voiceEngine.Start(ctx)

	mic := audio.NewMicrophone(cfg.Voice.SampleRate, transcriber.SendPCM16KLE, logger)
	go func() {
		if err := mic.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("microphone unavailable", "error", err)
		}
	}()

	locEngine := location.NewEngine(client, m, logger)
	push := position.NewPushProvider(logger)
	if status, _ := auth.RequestLocation(ctx); status != permissions.StatusGranted {
		logger.Warn("location permission not granted, geofence triggers disabled")
	} else {
		providers := []position.Provider{push}
		if cfg.Position.ReplayFile != "" {
			replay := position.NewReplayProvider(cfg.Position.ReplayFile, cfg.ReplayInterval(), logger)
			go func() {
				if err := replay.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Error("position replay stopped", "error", err)
				}
			}()
			providers = append(providers, replay)
		}
		updates := make(chan position.Update, 16)
		go position.Merge(ctx, updates, providers...)
		go locEngine.Run(ctx, updates)
	}

	capsuleStore := capsules.NewStore(client, logger)
	reminderStore := reminders.NewStore(client, logger)

	e := control.NewRouter()
	handlers := control.NewHandlers(voiceEngine, locEngine, capsuleStore, reminderStore, client, push)
	handlers.Register(e)

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("control API listening", "address", cfg.HTTP.Address)
		serverErrors <- server.ListenAndServe()
	}()

	if health, err := client.CheckHealth(ctx); err != nil {
		logger.Warn("backend unreachable at startup", "error", err)
	} else if !health.Healthy() {
		logger.Warn("backend reports degraded health", "status", health.Status)
	}

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = server.Close()
	}
	_ = transcriber.Stop()
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
