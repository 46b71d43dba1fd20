package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/app"
	"scheduler-client/internal/config"
	"scheduler-client/internal/handlers"
	"scheduler-client/internal/kvstore"
	"scheduler-client/internal/middleware"
	"scheduler-client/internal/models"
	"scheduler-client/internal/router"
	"scheduler-client/internal/services"
	"scheduler-client/internal/websocket"
	"scheduler-client/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("scheduler client stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 1: Configuration & Logging ────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log)
	log.Info("starting scheduler client", slog.String("env", cfg.Env), slog.String("store", cfg.StoreDriver))

	// ──── Step 2: Device Store ────
	store, err := kvstore.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// ──── Step 3: Backend Client & Services ────
	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout)

	wsHub := websocket.NewHub(cfg.FrontendURL, log)
	status := services.NewStatusBoard(wsHub, cfg.StatusClearAfter)
	wsHub.OnConnect(func() *models.WSMessage {
		current := status.Current()
		if current.Text == "" {
			return nil
		}
		return &models.WSMessage{Type: "status", Payload: current}
	})

	plans := services.NewStudyPlanService(store, log)
	files := services.NewFileExtractService()
	tasks := services.NewTaskService(store, api, plans, files, log)
	planner := services.NewPlannerService(tasks, plans, store, api)
	cloud := services.NewCloudSync(plans, store, api, status, log)

	insights, err := services.NewInsightsService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, 2, plans, log)
	if err != nil {
		return err
	}
	defer insights.Close()

	// ──── Step 4: Cloud Sync Scheduler ────
	scheduler := worker.NewSyncScheduler(cloud, cfg.SyncPushDelay, cfg.SyncPullInterval, log)
	plans.SetPushScheduler(scheduler)
	scheduler.Start()

	// ──── Step 5: HTTP Server ────
	aiLimiter := middleware.NewRateLimiter(cfg.AIRateLimit, time.Minute)
	defer aiLimiter.Stop()

	r := router.New(router.Handlers{
		Tasks:     handlers.NewTaskHandler(tasks, cfg.UploadMaxMB, log),
		StudyPlan: handlers.NewStudyPlanHandler(plans, planner, insights, cloud, log),
		Sync:      handlers.NewSyncHandler(scheduler, status, store, log),
		Session:   handlers.NewSessionHandler(store, scheduler, log),
	}, wsHub, aiLimiter, cfg.FrontendURL, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("scheduler client ready",
			slog.String("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)),
			slog.String("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", slog.Any("error", err))
	}

	// Flush scheduled pushes before the store closes.
	scheduler.Stop()
	return nil
}
