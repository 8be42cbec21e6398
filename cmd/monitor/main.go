package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/dockerlab-backend/internal/aggregator"
	"github.com/yungbote/dockerlab-backend/internal/catalog"
	mqttclient "github.com/yungbote/dockerlab-backend/internal/clients/mqtt"
	redisclient "github.com/yungbote/dockerlab-backend/internal/clients/redis"
	"github.com/yungbote/dockerlab-backend/internal/db"
	"github.com/yungbote/dockerlab-backend/internal/handlers"
	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/observability"
	"github.com/yungbote/dockerlab-backend/internal/repos"
	"github.com/yungbote/dockerlab-backend/internal/server"
	"github.com/yungbote/dockerlab-backend/internal/services"
	"github.com/yungbote/dockerlab-backend/internal/sse"
	"github.com/yungbote/dockerlab-backend/internal/utils"
)

// notifier bridges the aggregator to the dashboard: through Redis when a
// bus is configured (so every replica's SSE clients hear it), straight
// to the local hub otherwise.
type notifier struct {
	bus redisclient.NotifyBus
	hub *sse.Hub
	log *logger.Logger
}

func (n *notifier) Notify(msg sse.Message) {
	if n.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := n.bus.Publish(ctx, msg)
		if err == nil {
			return
		}
		n.log.Warn("redis notify failed, broadcasting locally", "error", err)
	}
	n.hub.Broadcast(msg)
}

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8090", log)
	heartbeatTimeout := utils.GetEnvAsDuration("HEARTBEAT_TIMEOUT", 90*time.Second, log)
	retentionDays := utils.GetEnvAsInt("EVENT_RETENTION_DAYS", 30, log)

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "dockerlab-monitor",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "", log),
	})
	if shutdownOtel != nil {
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			_ = shutdownOtel(shutdownCtx)
		}()
	}

	// Catalog
	cat, err := catalog.Load()
	if err != nil {
		log.Fatal("Failed to load exercise catalog", "error", err)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	studentRepo := repos.NewStudentRepo(thePG, log)
	completionRepo := repos.NewCompletionRepo(thePG, log)
	eventRepo := repos.NewTelemetryEventRepo(thePG, log)
	sessionRepo := repos.NewSessionRepo(thePG, log)

	// SSE hub + optional Redis fan-out
	hub := sse.NewHub(log)
	var bus redisclient.NotifyBus
	if os.Getenv("REDIS_ADDR") != "" {
		bus, err = redisclient.NewNotifyBus(log)
		if err != nil {
			log.Warn("Redis bus init failed, notifications stay process-local", "error", err)
			bus = nil
		} else {
			defer bus.Close()
			if err := bus.StartForwarder(ctx, hub.Broadcast); err != nil {
				log.Warn("Redis forwarder init failed, notifications stay process-local", "error", err)
				bus = nil
			}
		}
	}
	notify := &notifier{bus: bus, hub: hub, log: log.With("component", "Notifier")}

	// Services
	log.Info("Setting up Services from main...")
	studentService := services.NewStudentService(thePG, log, studentRepo, completionRepo, sessionRepo, notify, heartbeatTimeout)
	leaderboardService := services.NewLeaderboardService(thePG, log, studentRepo, heartbeatTimeout)
	statisticsService := services.NewStatisticsService(thePG, log, cat, studentRepo, completionRepo, eventRepo, heartbeatTimeout)

	// Aggregator
	ingest := aggregator.NewIngestor(thePG, log, studentRepo, completionRepo, eventRepo, sessionRepo, notify,
		aggregator.Config{
			Namespace:        mqttclient.Namespace(),
			HeartbeatTimeout: heartbeatTimeout,
			TotalExercises:   cat.Len(),
			TotalPoints:      cat.TotalPoints(),
		})

	mqttClient, err := mqttclient.Connect("monitor", log)
	if err != nil {
		log.Warn("MQTT broker unreachable, serving stored data only", "error", err)
	} else {
		defer mqttClient.Disconnect(250)
		if err := ingest.Start(ctx, mqttClient); err != nil {
			log.Warn("MQTT subscription failed, serving stored data only", "error", err)
		}
	}

	// Router
	instructorHandler := handlers.NewInstructorHandler(studentService, leaderboardService, statisticsService)
	sseHandler := handlers.NewSSEHandler(hub)
	router := server.NewMonitorRouter(server.MonitorRouterConfig{
		InstructorHandler: instructorHandler,
		SSEHandler:        sseHandler,
		Degraded:          ingest.Degraded,
		Tracing:           observability.Enabled(),
	})

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Monitor API listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		retention := time.Duration(retentionDays) * 24 * time.Hour
		err := aggregator.RunRetentionSweeper(gctx, eventRepo, retention, log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
		defer c()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Monitor exited", "error", err)
	}
	log.Info("Monitor stopped cleanly")
}
