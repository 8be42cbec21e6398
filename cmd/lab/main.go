package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/dockerlab-backend/internal/catalog"
	mqttclient "github.com/yungbote/dockerlab-backend/internal/clients/mqtt"
	"github.com/yungbote/dockerlab-backend/internal/db"
	"github.com/yungbote/dockerlab-backend/internal/handlers"
	"github.com/yungbote/dockerlab-backend/internal/inspector"
	"github.com/yungbote/dockerlab-backend/internal/ledger"
	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/observability"
	"github.com/yungbote/dockerlab-backend/internal/server"
	"github.com/yungbote/dockerlab-backend/internal/telemetry"
	"github.com/yungbote/dockerlab-backend/internal/utils"
	"github.com/yungbote/dockerlab-backend/internal/verify"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Env
	log.Info("Loading environment variables from main...")
	studentID := utils.GetEnv("STUDENT_ID", "", log)
	ledgerPath := utils.GetEnv("LEDGER_PATH", "dockerlab_ledger.db", log)
	port := utils.GetEnv("PORT", "8080", log)
	mqttEnabled := utils.GetEnvAsBool("MQTT_ENABLED", true, log)
	relaxed := utils.GetEnvAsBool("VERIFY_RELAXED", true, log)
	heartbeatInterval := utils.GetEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second, log)

	if len(studentID) < verify.MinStudentIDLen {
		log.Fatal("STUDENT_ID is required (at least 4 characters)", "student_id", studentID)
	}

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "dockerlab-lab",
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

	// Ledger (SQLite)
	sqliteService, err := db.NewSQLiteService(ledgerPath, log)
	if err != nil {
		log.Fatal("Ledger database init failed", "error", err)
	}
	if err = sqliteService.AutoMigrateAll(); err != nil {
		log.Fatal("Ledger auto migration failed", "error", err)
	}
	led := ledger.NewStore(sqliteService.DB(), log)
	if _, err := led.Ensure(ctx, studentID); err != nil {
		log.Fatal("Failed to initialize ledger record", "error", err)
	}

	// Docker runtime (optional; verification degrades without it)
	insp, err := inspector.NewDocker(log)
	if err != nil {
		log.Warn("Docker runtime unavailable, verification will degrade", "error", err)
		insp = nil
	}

	// Telemetry (optional)
	pub := telemetry.NewNoopPublisher()
	mqttConnected := func() bool { return false }
	if mqttEnabled {
		client, err := mqttclient.Connect("lab", log)
		if err != nil {
			log.Warn("MQTT broker unreachable, telemetry disabled", "error", err)
		} else {
			pub = telemetry.NewMQTTPublisher(client, mqttclient.Namespace(), log)
			mqttConnected = client.IsConnected
			defer client.Disconnect(250)
		}
	}

	// Verification engine
	engine := verify.NewEngine(cat, insp, led, pub, log, relaxed)

	// Heartbeat loop
	telemetry.StartHeartbeat(ctx, pub, led, studentID, heartbeatInterval, log)

	// Router
	labHandler := handlers.NewLabHandler(engine, cat, led, studentID)
	router := server.NewLabRouter(server.LabRouterConfig{
		LabHandler:    labHandler,
		Inspector:     insp,
		MQTTConnected: mqttConnected,
		Tracing:       observability.Enabled(),
	})

	log.Info("Lab API listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("HTTP server exited", "error", err)
	}
}
