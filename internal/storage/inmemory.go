package storage

import (
	"context"
	"sync"
	"time"

	"github.com/sotec-iot/device-communication/internal/domain"
)

type deviceKey struct {
	tenant domain.TenantID
	device domain.DeviceID
}

type deviceState struct {
	updateTime time.Time
	payload    []byte
}

// InMemoryRepository is a map backed implementation of the repository
// interfaces, used in tests and in local development without a database.
type InMemoryRepository struct {
	lock    sync.Mutex
	devices map[deviceKey]bool
	configs map[deviceKey][]domain.ConfigRecord
	states  map[deviceKey]deviceState
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[deviceKey]bool),
		configs: make(map[deviceKey][]domain.ConfigRecord),
		states:  make(map[deviceKey]deviceState),
	}
}

// RegisterDevice makes a device known to subsequent DeviceExists calls.
func (r *InMemoryRepository) RegisterDevice(tenant domain.TenantID, device domain.DeviceID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.devices[deviceKey{tenant: tenant, device: device}] = true
}

// StoreConfig appends a config version for a device.
func (r *InMemoryRepository) StoreConfig(record domain.ConfigRecord) {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := deviceKey{tenant: record.TenantID, device: record.DeviceID}
	r.configs[key] = append(r.configs[key], record)
}

func (r *InMemoryRepository) DeviceExists(ctx context.Context, tenant domain.TenantID, device domain.DeviceID) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.devices[deviceKey{tenant: tenant, device: device}], nil
}

func (r *InMemoryRepository) ListKnownTenantIDs(ctx context.Context) ([]domain.TenantID, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	seen := make(map[domain.TenantID]bool)
	var tenants []domain.TenantID
	for key := range r.devices {
		if seen[key.tenant] == false {
			seen[key.tenant] = true
			tenants = append(tenants, key.tenant)
		}
	}

	return tenants, nil
}

func (r *InMemoryRepository) GetLatestConfigVersion(ctx context.Context, tenant domain.TenantID, device domain.DeviceID) (*domain.ConfigRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	records := r.configs[deviceKey{tenant: tenant, device: device}]
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Version > latest.Version {
			latest = record
		}
	}

	return &latest, nil
}

func (r *InMemoryRepository) RecordDeliveryOutcome(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, version int, ackTime *time.Time, deliveryError string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := deviceKey{tenant: tenant, device: device}
	for i := range r.configs[key] {
		record := &r.configs[key][i]
		if record.Version != version {
			continue
		}
		if ackTime != nil {
			record.DeviceAckTime = ackTime
		}
		record.LastError = deliveryError
		return nil
	}

	return ErrNotFound
}

func (r *InMemoryRepository) RecordDeviceState(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, updateTime time.Time, payload []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.states[deviceKey{tenant: tenant, device: device}] = deviceState{
		updateTime: updateTime,
		payload:    append([]byte(nil), payload...),
	}

	return nil
}

// DeviceStateFor returns the recorded state payload for a device.
func (r *InMemoryRepository) DeviceStateFor(tenant domain.TenantID, device domain.DeviceID) ([]byte, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	state, exists := r.states[deviceKey{tenant: tenant, device: device}]
	if exists == false {
		return nil, false
	}
	return state.payload, true
}
