package topology

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/pubsub"

	"github.com/sirupsen/logrus"
)

const (
	tenantChangeCreate = "CREATE"
	tenantChangeUpdate = "UPDATE"
	tenantChangeDelete = "DELETE"
)

// tenantChangeNotification is the payload the device registry publishes on
// the tenant lifecycle control topic.
type tenantChangeNotification struct {
	TenantID string `json:"tenant-id"`
	Change   string `json:"change"`
}

type tenantListener struct {
	manager *Manager
}

func newTenantListener(manager *Manager) *tenantListener {
	return &tenantListener{manager: manager}
}

// handle processes one tenant lifecycle notification. The message is acked
// unconditionally: provisioning and teardown are idempotent, and a malformed
// notification does not get better by being redelivered.
func (l *tenantListener) handle(ctx context.Context, msg pubsub.Message, ack func()) {
	ack()

	var notification tenantChangeNotification
	err := json.Unmarshal(msg.Data, &notification)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Discarding malformed tenant notification")
		return
	}

	change := strings.ToUpper(notification.Change)
	tenant := domain.TenantID(notification.TenantID)

	log := logger.Log.WithFields(logrus.Fields{"tenant_id": tenant, "change": change})

	if tenant == "" {
		log.Warn("Discarding tenant notification without a tenant id")
		return
	}

	metrics.tenantNotificationCounter.WithLabelValues(change).Inc()

	switch change {
	case tenantChangeCreate:
		err := l.manager.ProvisionTenant(ctx, tenant)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to provision created tenant")
		}
	case tenantChangeDelete:
		err := l.manager.TeardownTenant(ctx, tenant)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to tear down deleted tenant")
		}
	case tenantChangeUpdate:
		// Tenant metadata changes do not affect the transport topology.
	default:
		log.Debug("Ignoring tenant notification with unknown change type")
	}
}
