package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sotec-iot/device-communication/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PostgresRepository reads the device registry's tables and writes delivery
// bookkeeping back. It implements DeviceRepository, ConfigRepository and
// StateRepository over one connection pool.
type PostgresRepository struct {
	database     *sql.DB
	queryTimeout time.Duration
}

func NewPostgresRepository(database *sql.DB, queryTimeout time.Duration) *PostgresRepository {
	return &PostgresRepository{
		database:     database,
		queryTimeout: queryTimeout,
	}
}

func (r *PostgresRepository) DeviceExists(ctx context.Context, tenant domain.TenantID, device domain.DeviceID) (bool, error) {
	callDurationTimer := prometheus.NewTimer(metrics.deviceExistsDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	statement := "SELECT COUNT(*) FROM device_registrations WHERE tenant_id = $1 AND device_id = $2"

	var count int
	err := r.database.QueryRowContext(ctx, statement, tenant.String(), device.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("device registration lookup failed: %w", err)
	}

	return count > 0, nil
}

func (r *PostgresRepository) ListKnownTenantIDs(ctx context.Context) ([]domain.TenantID, error) {
	callDurationTimer := prometheus.NewTimer(metrics.listTenantsDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	statement := "SELECT DISTINCT tenant_id FROM device_registrations"

	rows, err := r.database.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("tenant listing failed: %w", err)
	}
	defer rows.Close()

	var tenants []domain.TenantID
	for rows.Next() {
		var tenant string
		err := rows.Scan(&tenant)
		if err != nil {
			return nil, fmt.Errorf("tenant listing failed: %w", err)
		}
		tenants = append(tenants, domain.TenantID(tenant))
	}

	return tenants, rows.Err()
}

func (r *PostgresRepository) GetLatestConfigVersion(ctx context.Context, tenant domain.TenantID, device domain.DeviceID) (*domain.ConfigRecord, error) {
	callDurationTimer := prometheus.NewTimer(metrics.getConfigVersionDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	statement := `SELECT version, binary_data, cloud_update_time, device_ack_time, last_error
		FROM device_configs
		WHERE tenant_id = $1 AND device_id = $2
		ORDER BY version DESC
		LIMIT 1`

	record := domain.ConfigRecord{
		TenantID: tenant,
		DeviceID: device,
	}
	var deviceAckTime sql.NullTime
	var lastError sql.NullString

	err := r.database.QueryRowContext(ctx, statement, tenant.String(), device.String()).
		Scan(&record.Version, &record.BinaryData, &record.CloudUpdateTime, &deviceAckTime, &lastError)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("config version lookup failed: %w", err)
	}

	if deviceAckTime.Valid == true {
		record.DeviceAckTime = &deviceAckTime.Time
	}
	if lastError.Valid == true {
		record.LastError = lastError.String
	}

	return &record, nil
}

func (r *PostgresRepository) RecordDeliveryOutcome(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, version int, ackTime *time.Time, deliveryError string) error {
	callDurationTimer := prometheus.NewTimer(metrics.recordOutcomeDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	statement := `UPDATE device_configs
		SET device_ack_time = COALESCE($4, device_ack_time), last_error = $5
		WHERE tenant_id = $1 AND device_id = $2 AND version = $3`

	var nullableAckTime sql.NullTime
	if ackTime != nil {
		nullableAckTime = sql.NullTime{Time: *ackTime, Valid: true}
	}

	result, err := r.database.ExecContext(ctx, statement, tenant.String(), device.String(), version, nullableAckTime, deliveryError)
	if err != nil {
		return fmt.Errorf("delivery outcome update failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) RecordDeviceState(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, updateTime time.Time, payload []byte) error {
	callDurationTimer := prometheus.NewTimer(metrics.recordDeviceStateDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	statement := `INSERT INTO device_states (tenant_id, device_id, update_time, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, device_id) DO UPDATE
		SET update_time = EXCLUDED.update_time, payload = EXCLUDED.payload`

	_, err := r.database.ExecContext(ctx, statement, tenant.String(), device.String(), updateTime, payload)
	if err != nil {
		return fmt.Errorf("device state insert failed: %w", err)
	}

	return nil
}
