package topology

import (
	"context"
	"fmt"

	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/pubsub"
	"github.com/sotec-iot/device-communication/internal/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// HandlerSet carries the message handlers the manager attaches to every
// tenant's API subscriptions. A nil handler leaves that subscription without
// a local consumer.
type HandlerSet struct {
	OnEvent           pubsub.MessageHandler
	OnCommandResponse pubsub.MessageHandler
	OnDeviceState     pubsub.MessageHandler
}

// Manager owns the per-tenant transport topology: it creates it when a
// tenant appears, repairs it at startup and tears it down when the tenant
// goes away. It also keeps this instance subscribed to every known tenant.
type Manager struct {
	admin          pubsub.AdminClient
	messaging      pubsub.Messaging
	devices        storage.DeviceRepository
	handlers       HandlerSet
	reconciler     *Reconciler
	batchThreshold int
}

func NewManager(admin pubsub.AdminClient, messaging pubsub.Messaging, devices storage.DeviceRepository, handlers HandlerSet, batchThreshold int, maxConcurrency int) *Manager {
	return &Manager{
		admin:          admin,
		messaging:      messaging,
		devices:        devices,
		handlers:       handlers,
		reconciler:     NewReconciler(admin, maxConcurrency),
		batchThreshold: batchThreshold,
	}
}

// Start brings the topology of every known tenant up to date and attaches
// the tenant lifecycle listener. Individual tenant failures are logged and
// skipped so one broken tenant cannot keep the service from starting.
func (m *Manager) Start(ctx context.Context) error {
	err := m.ensureNotificationSubscription(ctx)
	if err != nil {
		return err
	}

	listener := newTenantListener(m)
	err = m.messaging.Subscribe(ctx, domain.TenantNotificationSubscription(), listener.handle)
	if err != nil {
		return fmt.Errorf("unable to subscribe to tenant notifications: %w", err)
	}

	tenants, err := m.devices.ListKnownTenantIDs(ctx)
	if err != nil {
		return fmt.Errorf("unable to list known tenants: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"tenants": len(tenants)}).Info("Reconciling tenant topology")

	if len(tenants) < m.batchThreshold {
		for _, tenant := range tenants {
			err := m.ProvisionTenant(ctx, tenant)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"tenant_id": tenant, "error": err}).Error("Unable to provision tenant, skipping")
			}
		}
		return nil
	}

	err = m.reconcileBatch(ctx, tenants)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Topology reconciliation finished with failures")
	}

	for _, tenant := range tenants {
		err := m.attachTenantHandlers(ctx, tenant)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"tenant_id": tenant, "error": err}).Error("Unable to attach tenant subscribers")
		}
	}

	return nil
}

// reconcileBatch repairs the topology of many tenants with one listing pass
// instead of one admin round trip per resource per tenant.
func (m *Manager) reconcileBatch(ctx context.Context, tenants []domain.TenantID) error {
	topics, err := m.admin.ListTopicIDs(ctx)
	if err != nil {
		return fmt.Errorf("unable to list topics: %w", err)
	}

	subscriptions, err := m.admin.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("unable to list subscriptions: %w", err)
	}

	diff := ComputeDiff(tenants, topics, subscriptions)
	if diff.Empty() == true {
		logger.Log.Info("Tenant topology is already complete")
		return nil
	}

	logger.Log.WithFields(logrus.Fields{
		"missing_topics":        len(diff.MissingTopics),
		"missing_subscriptions": len(diff.MissingSubscriptions),
		"faulty_subscriptions":  len(diff.FaultySubscriptions),
	}).Info("Applying topology diff")

	return m.reconciler.Apply(ctx, diff)
}

// ProvisionTenant creates the tenant's topics and subscriptions and attaches
// this instance's handlers. Safe to call for an already provisioned tenant.
// One endpoint failing does not stop the others: every create is attempted,
// handlers are attached to whatever exists, and the failures come back as a
// single counted error.
func (m *Manager) ProvisionTenant(ctx context.Context, tenant domain.TenantID) error {
	if tenant == "" {
		return fmt.Errorf("tenant id must not be empty")
	}

	failed := 0

	for _, endpoint := range domain.Endpoints() {
		topic := domain.TopicID(tenant, endpoint)
		err := m.admin.CreateTopic(ctx, topic)
		if err != nil {
			failed++
			logger.Log.WithFields(logrus.Fields{"topic": topic, "error": err}).Error("Unable to create topic")
		}
	}

	for subscription, topic := range desiredSubscriptions(tenant) {
		err := m.admin.CreateSubscription(ctx, subscription, topic)
		if err != nil {
			failed++
			logger.Log.WithFields(logrus.Fields{"subscription": subscription, "error": err}).Error("Unable to create subscription")
		}
	}

	err := m.attachTenantHandlers(ctx, tenant)
	if err != nil {
		failed++
		logger.Log.WithFields(logrus.Fields{"tenant_id": tenant, "error": err}).Error("Unable to attach tenant subscribers")
	}

	if failed > 0 {
		return fmt.Errorf("%d provisioning operations failed for tenant %s", failed, tenant)
	}

	metrics.provisionedTenantCounter.Inc()
	logger.Log.WithFields(logrus.Fields{"tenant_id": tenant}).Info("Tenant topology provisioned")

	return nil
}

// TeardownTenant removes a tenant's topology. Local subscribers stop first
// so no handler runs against a half-deleted tenant; resource deletion is
// best effort and tolerates already absent resources.
func (m *Manager) TeardownTenant(ctx context.Context, tenant domain.TenantID) error {
	if tenant == "" {
		return fmt.Errorf("tenant id must not be empty")
	}

	// Only a tenant this instance actually had subscribers for counts as
	// managed; a repeated delete notification must not drive the gauge
	// negative.
	if m.messaging.CloseSubscribersForTenant(tenant.String()) > 0 {
		metrics.managedTenantGauge.Dec()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for subscription := range desiredSubscriptions(tenant) {
		group.Go(func() error {
			err := m.admin.DeleteSubscription(groupCtx, subscription)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"subscription": subscription, "error": err}).Error("Unable to delete subscription")
			}
			return nil
		})
	}
	group.Wait()

	// Topics go after their subscriptions so no subscription is left bound
	// to a deleted topic.
	group, groupCtx = errgroup.WithContext(ctx)
	for _, endpoint := range domain.Endpoints() {
		group.Go(func() error {
			topic := domain.TopicID(tenant, endpoint)
			err := m.admin.DeleteTopic(groupCtx, topic)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"topic": topic, "error": err}).Error("Unable to delete topic")
			}
			return nil
		})
	}
	group.Wait()

	metrics.tornDownTenantCounter.Inc()
	logger.Log.WithFields(logrus.Fields{"tenant_id": tenant}).Info("Tenant topology removed")

	return nil
}

// attachTenantHandlers subscribes this instance to the tenant's API
// subscriptions.
func (m *Manager) attachTenantHandlers(ctx context.Context, tenant domain.TenantID) error {
	attachments := []struct {
		subscription string
		handler      pubsub.MessageHandler
	}{
		{domain.APISubscriptionID(tenant, domain.EndpointEvent), m.handlers.OnEvent},
		{domain.APISubscriptionID(tenant, domain.EndpointCommandResponse), m.handlers.OnCommandResponse},
		{domain.APISubscriptionID(tenant, domain.EndpointEventState), m.handlers.OnDeviceState},
	}

	for _, attachment := range attachments {
		if attachment.handler == nil {
			continue
		}
		err := m.messaging.Subscribe(ctx, attachment.subscription, attachment.handler)
		if err != nil {
			return fmt.Errorf("unable to subscribe to %s: %w", attachment.subscription, err)
		}
	}

	metrics.managedTenantGauge.Inc()
	return nil
}

// ensureNotificationSubscription makes sure the tenant lifecycle control
// channel exists. The registry normally provisions the topic; creating it
// here as well lets this service start before the registry on an empty
// project.
func (m *Manager) ensureNotificationSubscription(ctx context.Context) error {
	err := m.admin.CreateTopic(ctx, domain.TenantNotificationTopic)
	if err != nil {
		return fmt.Errorf("unable to ensure tenant notification topic: %w", err)
	}

	err = m.admin.CreateSubscription(ctx, domain.TenantNotificationSubscription(), domain.TenantNotificationTopic)
	if err != nil {
		return fmt.Errorf("unable to ensure tenant notification subscription: %w", err)
	}

	return nil
}
