package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sotec-iot/device-communication/internal/domain"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// DeviceRepository answers existence and directory questions about the
// device registry data this service can see.
type DeviceRepository interface {
	DeviceExists(ctx context.Context, tenant domain.TenantID, device domain.DeviceID) (bool, error)
	ListKnownTenantIDs(ctx context.Context) ([]domain.TenantID, error)
}

// ConfigRepository exposes the slice of the config history this service
// needs: the newest version to push on request, and a place to record what
// happened to a delivery. Retention of the history itself is not this
// service's concern.
type ConfigRepository interface {
	GetLatestConfigVersion(ctx context.Context, tenant domain.TenantID, device domain.DeviceID) (*domain.ConfigRecord, error)
	RecordDeliveryOutcome(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, version int, ackTime *time.Time, deliveryError string) error
}

// StateRepository records reported device states.
type StateRepository interface {
	RecordDeviceState(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, updateTime time.Time, payload []byte) error
}
