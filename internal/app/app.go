package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fractureapi/internal/config"
	"fractureapi/internal/logger"
	"fractureapi/internal/routes"
	"fractureapi/internal/service"
	"fractureapi/internal/service/ai"
	"fractureapi/internal/service/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	artifacts  *ai.Artifacts
	hubService *websocket.HubService
	manager    *service.Manager
}

func NewApp() *App {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	artifacts := ai.LoadArtifacts(cfg, log)
	hub := websocket.NewHubService(log)

	mng := service.NewManager(buildStages(artifacts), service.Readiness{
		Ready:     artifacts.Ready(),
		Artifacts: artifacts.Status(),
	}, cfg.XrayThreshold, hub, log)

	return &App{
		config:     cfg,
		logger:     log,
		artifacts:  artifacts,
		hubService: hub,
		manager:    mng,
	}
}

// buildStages converts loaded artifacts to pipeline stages. Missing
// artifacts stay nil interfaces, never typed nil pointers.
func buildStages(a *ai.Artifacts) service.Stages {
	stages := service.Stages{Preprocessor: ai.Preprocessor{}}
	if a.Detector != nil {
		stages.Detector = a.Detector
	}
	if a.Extractor != nil {
		stages.Extractor = a.Extractor
	}
	if a.Pipeline != nil {
		stages.Classifier = a.Pipeline
	}
	return stages
}

func (a *App) Run() error {
	defer a.close()

	go a.hubService.Run()

	router := routes.SetupRoutes(a.manager, a.hubService, a.config, a.logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Fracture classification server on http://localhost:%d", a.config.Port)
	a.logger.Info("Models: %s (ready: %v)", a.config.ModelDirectory, a.manager.Ready())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(a.config.ShutdownTimeoutSecs)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func (a *App) close() {
	a.hubService.Stop()
	a.artifacts.Close()
	a.logger.Close()
}
