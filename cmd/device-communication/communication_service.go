package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sotec-iot/device-communication/internal/config"
	"github.com/sotec-iot/device-communication/internal/controller/api"
	"github.com/sotec-iot/device-communication/internal/correlation"
	"github.com/sotec-iot/device-communication/internal/delivery"
	"github.com/sotec-iot/device-communication/internal/platform/db"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/platform/utils"
	"github.com/sotec-iot/device-communication/internal/pubsub"
	"github.com/sotec-iot/device-communication/internal/storage"
	"github.com/sotec-iot/device-communication/internal/topology"

	gcppubsub "cloud.google.com/go/pubsub"
	"github.com/gorilla/mux"
)

func startCommunicationService(mgmtAddr string) {

	logger.InitLogger()

	logger.Log.Info("Starting Device-Communication service")

	cfg := config.GetConfig()
	logger.Log.Info("Device-Communication configuration:\n", cfg)

	ctx := context.Background()

	repository := buildRepository(cfg)

	client, err := gcppubsub.NewClient(ctx, cfg.GoogleProjectId)
	if err != nil {
		logger.LogFatalError("Unable to connect to the Pub/Sub service", err)
	}

	messaging := pubsub.NewGoogleMessaging(client, pubsub.SubscriberSettings{
		NumGoroutines:          cfg.SubscriberNumGoroutines,
		MaxOutstandingMessages: cfg.SubscriberMaxOutstanding,
	})

	admin, err := pubsub.NewGoogleAdminClient(ctx, cfg.GoogleProjectId)
	if err != nil {
		logger.LogFatalError("Unable to create the Pub/Sub admin client", err)
	}

	registry := correlation.NewRegistry()

	coordinator := delivery.NewCoordinator(messaging, registry, repository, delivery.NewConfigRecorder(repository))

	configPushPolicy := delivery.Policy{
		AckTimeout:        cfg.CommandAckTimeout,
		MaxRetries:        cfg.ConfigRequestRetries,
		InitialRetryDelay: cfg.ConfigRetryInitialDelay,
		MaxRetryDelay:     cfg.ConfigRetryMaxDelay,
	}

	handlers := delivery.NewHandlers(coordinator, registry, repository, repository, configPushPolicy)

	topologyManager := topology.NewManager(admin, messaging, repository, topology.HandlerSet{
		OnEvent:           handlers.ConfigRequest,
		OnCommandResponse: handlers.CommandResponse,
		OnDeviceState:     handlers.DeviceState,
	}, cfg.BatchReconcileThreshold, cfg.ReconcileMaxConcurrency)

	err = topologyManager.Start(ctx)
	if err != nil {
		logger.LogFatalError("Unable to start the topology manager", err)
	}

	apiMux := mux.NewRouter()

	monitoringServer := api.NewMonitoringServer(apiMux, cfg)
	monitoringServer.Routes()

	managementServer := api.NewManagementServer(topologyManager, apiMux, cfg)
	managementServer.Routes()

	apiSrv := utils.StartHTTPServer(mgmtAddr, "management", apiMux)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer cancel()

	utils.ShutdownHTTPServer(shutdownCtx, "management", apiSrv)

	messaging.Close()
	if err := admin.Close(); err != nil {
		logger.LogError("Error closing the Pub/Sub admin client", err)
	}

	logger.Log.Info("Device-Communication shutting down")
}

type repository interface {
	storage.DeviceRepository
	storage.ConfigRepository
	storage.StateRepository
}

func buildRepository(cfg *config.Config) repository {
	switch cfg.DeviceDatabaseImpl {
	case "postgres":
		database, err := db.InitializeDatabaseConnection(cfg)
		if err != nil {
			logger.LogFatalError("Unable to connect to the device database", err)
		}
		return storage.NewPostgresRepository(database, cfg.DeviceDatabaseQueryTimeout)
	case "memory":
		logger.Log.Warn("Using the in-memory device repository, data will not survive a restart")
		return storage.NewInMemoryRepository()
	default:
		logger.Log.Fatal("Invalid device database impl: ", cfg.DeviceDatabaseImpl)
		return nil
	}
}
