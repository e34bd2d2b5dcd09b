package main

import (
	"context"

	"github.com/sotec-iot/device-communication/internal/config"
	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/pubsub"
	"github.com/sotec-iot/device-communication/internal/topology"
)

// startTopologyReconciler runs one reconciliation pass and exits. With a
// tenant id it provisions just that tenant; without one it repairs the
// topology of every tenant known to the device registry.
func startTopologyReconciler(tenantId string) {

	logger.InitLogger()

	logger.Log.Info("Starting Device-Communication topology reconciler")

	cfg := config.GetConfig()
	logger.Log.Info("Device-Communication configuration:\n", cfg)

	ctx := context.Background()

	repository := buildRepository(cfg)

	admin, err := pubsub.NewGoogleAdminClient(ctx, cfg.GoogleProjectId)
	if err != nil {
		logger.LogFatalError("Unable to create the Pub/Sub admin client", err)
	}
	defer admin.Close()

	if tenantId != "" {
		reconcileSingleTenant(ctx, admin, domain.TenantID(tenantId))
		return
	}

	tenants, err := repository.ListKnownTenantIDs(ctx)
	if err != nil {
		logger.LogFatalError("Unable to list known tenants", err)
	}

	topics, err := admin.ListTopicIDs(ctx)
	if err != nil {
		logger.LogFatalError("Unable to list topics", err)
	}

	subscriptions, err := admin.ListSubscriptions(ctx)
	if err != nil {
		logger.LogFatalError("Unable to list subscriptions", err)
	}

	diff := topology.ComputeDiff(tenants, topics, subscriptions)
	if diff.Empty() {
		logger.Log.Info("Tenant topology is already complete")
		return
	}

	reconciler := topology.NewReconciler(admin, cfg.ReconcileMaxConcurrency)
	err = reconciler.Apply(ctx, diff)
	if err != nil {
		logger.LogFatalError("Topology reconciliation finished with failures", err)
	}

	logger.Log.Info("Topology reconciliation complete")
}

func reconcileSingleTenant(ctx context.Context, admin pubsub.AdminClient, tenant domain.TenantID) {
	topics, err := admin.ListTopicIDs(ctx)
	if err != nil {
		logger.LogFatalError("Unable to list topics", err)
	}

	subscriptions, err := admin.ListSubscriptions(ctx)
	if err != nil {
		logger.LogFatalError("Unable to list subscriptions", err)
	}

	diff := topology.ComputeDiff([]domain.TenantID{tenant}, topics, subscriptions)
	if diff.Empty() {
		logger.Log.Info("Tenant topology is already complete")
		return
	}

	reconciler := topology.NewReconciler(admin, 1)
	err = reconciler.Apply(ctx, diff)
	if err != nil {
		logger.LogFatalError("Topology reconciliation finished with failures", err)
	}

	logger.Log.Info("Tenant topology reconciled")
}
