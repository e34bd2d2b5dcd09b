package delivery

import (
	"context"
	"strconv"
	"time"

	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/storage"
)

// configRecorder persists delivery lifecycle events of config pushes. The
// correlation id of a config push is its version number; lifecycle events
// whose correlation id is not a version number belong to plain commands and
// are ignored.
type configRecorder struct {
	configs storage.ConfigRepository
}

func NewConfigRecorder(configs storage.ConfigRepository) Recorder {
	return &configRecorder{configs: configs}
}

func (r *configRecorder) DeliveryPublished(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, correlationID string) {
	version, ok := configVersion(correlationID)
	if ok == false {
		return
	}

	err := r.configs.RecordDeliveryOutcome(ctx, tenant, device, version, nil, "")
	if err != nil {
		logger.LogErrorWithTenantAndDevice("Unable to record config publish", err, tenant.String(), device.String())
	}
}

func (r *configRecorder) DeliveryAcked(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, correlationID string, ackTime time.Time) {
	version, ok := configVersion(correlationID)
	if ok == false {
		return
	}

	err := r.configs.RecordDeliveryOutcome(ctx, tenant, device, version, &ackTime, "")
	if err != nil {
		logger.LogErrorWithTenantAndDevice("Unable to record config acknowledgement", err, tenant.String(), device.String())
	}
}

func (r *configRecorder) DeliveryFailed(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, correlationID string, reason string) {
	version, ok := configVersion(correlationID)
	if ok == false {
		return
	}

	err := r.configs.RecordDeliveryOutcome(ctx, tenant, device, version, nil, reason)
	if err != nil {
		logger.LogErrorWithTenantAndDevice("Unable to record config delivery failure", err, tenant.String(), device.String())
	}
}

func configVersion(correlationID string) (int, bool) {
	version, err := strconv.Atoi(correlationID)
	if err != nil {
		return 0, false
	}
	return version, true
}
