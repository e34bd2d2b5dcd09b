package delivery

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/sotec-iot/device-communication/internal/correlation"
	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/pubsub"
	"github.com/sotec-iot/device-communication/internal/storage"

	"github.com/sirupsen/logrus"
)

// Handlers wires the inbound subscriptions to the acknowledgement registry
// and the config repository. All handlers acknowledge their message before
// processing: the transport redelivering a notification this service already
// acted on is harmless, losing a crashed worker's message is not.
type Handlers struct {
	coordinator *Coordinator
	registry    *correlation.Registry
	configs     storage.ConfigRepository
	states      storage.StateRepository
	retryPolicy Policy
}

func NewHandlers(coordinator *Coordinator, registry *correlation.Registry, configs storage.ConfigRepository, states storage.StateRepository, retryPolicy Policy) *Handlers {
	return &Handlers{
		coordinator: coordinator,
		registry:    registry,
		configs:     configs,
		states:      states,
		retryPolicy: retryPolicy,
	}
}

// CommandResponse handles messages on a tenant's command_response
// subscription: transport level success and failure notifications plus
// application level responses, all correlated back to a pending delivery.
func (h *Handlers) CommandResponse(ctx context.Context, msg pubsub.Message, ack func()) {
	ack()

	tenant := domain.TenantID(msg.Attributes[AttrTenantID])
	device := domain.DeviceID(msg.Attributes[AttrDeviceID])
	correlationID := msg.Attributes[AttrCorrelationID]

	log := logger.Log.WithFields(logrus.Fields{
		"tenant_id":      tenant,
		"device_id":      device,
		"correlation_id": correlationID,
	})

	if correlationID == "" {
		log.Debug("Discarding command response without a correlation id")
		return
	}

	handle := h.registry.Remove(tenant, device, correlationID)
	if handle == nil {
		// Late or duplicate acknowledgement; the delivery already reached a
		// terminal outcome.
		log.Debug("No pending delivery for this acknowledgement")
		return
	}

	contentType := msg.Attributes[AttrContentType]

	if contentType == ContentTypeDeliveryFailureNotification {
		metrics.failureNotificationCounter.Inc()
		if handle.Resolve(domain.TransportError, ErrDeliveryFailed) {
			log.Warn("Adapter reported a delivery failure")
			go h.coordinator.recorder.DeliveryFailed(context.WithoutCancel(ctx), tenant, device, correlationID, string(msg.Data))
		}
		return
	}

	// Success notification or a device response to a response-required
	// delivery; both confirm receipt.
	metrics.ackReceivedCounter.Inc()
	if handle.Resolve(domain.AckReceived, nil) {
		log.Info("Delivery acknowledged by the device")
		go h.coordinator.recorder.DeliveryAcked(context.WithoutCancel(ctx), tenant, device, correlationID, time.Now().UTC())
	}
}

// ConfigRequest handles a tenant's event subscription and reacts to devices
// signalling readiness to receive commands by pushing their newest stored
// configuration.
func (h *Handlers) ConfigRequest(ctx context.Context, msg pubsub.Message, ack func()) {
	ack()

	if isConfigRequest(msg.Attributes) == false {
		return
	}

	tenant := domain.TenantID(msg.Attributes[AttrTenantID])
	device := domain.DeviceID(msg.Attributes[AttrDeviceID])
	if tenant == "" || device == "" {
		return
	}

	// The adapter stamps the address the request arrived on; keep it in the
	// log so a push can be traced back to the device's connect or poll.
	log := logger.Log.WithFields(logrus.Fields{
		"tenant_id":    tenant,
		"device_id":    device,
		"orig_address": msg.Attributes[AttrOrigAddress],
	})

	record, err := h.configs.GetLatestConfigVersion(ctx, tenant, device)
	if err == storage.ErrNotFound {
		log.Debug("Device requested its config but none is stored")
		return
	}
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to load latest config version")
		return
	}

	payload, err := base64.StdEncoding.DecodeString(record.BinaryData)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err, "version": record.Version}).Error("Stored config payload is not valid base64")
		return
	}

	policy := h.retryPolicy
	// The version number doubles as the correlation id, so the device's
	// acknowledgement identifies which config version it applied.
	policy.CorrelationID = strconv.Itoa(record.Version)

	// Delivery blocks until the device acks or the retry budget runs out;
	// keep it off the subscriber's worker pool.
	go func() {
		outcome, err := h.coordinator.Deliver(context.WithoutCancel(ctx), Request{
			Tenant:  tenant,
			Device:  device,
			Payload: payload,
			Subject: SubjectConfig,
			Mode:    domain.AckWithRetry,
			Policy:  policy,
		})
		if err != nil {
			log.WithFields(logrus.Fields{"error": err, "version": record.Version, "outcome": outcome.String()}).Warn("Config push did not reach the device")
			return
		}
		log.WithFields(logrus.Fields{"version": record.Version, "outcome": outcome.String()}).Info("Config push finished")
	}()
}

// DeviceState handles a tenant's event.state subscription and records the
// reported state verbatim.
func (h *Handlers) DeviceState(ctx context.Context, msg pubsub.Message, ack func()) {
	ack()

	tenant := domain.TenantID(msg.Attributes[AttrTenantID])
	device := domain.DeviceID(msg.Attributes[AttrDeviceID])
	if tenant == "" || device == "" {
		return
	}

	err := h.states.RecordDeviceState(context.WithoutCancel(ctx), tenant, device, time.Now().UTC(), msg.Data)
	if err != nil {
		logger.LogErrorWithTenantAndDevice("Unable to record device state", err, tenant.String(), device.String())
	}
}

// isConfigRequest reports whether an event message means "device is ready to
// receive its config". That is an explicit empty notification with an
// unlimited command window, or any HTTP adapter event carrying a ttd (the
// HTTP adapter only sets ttd when the device is waiting).
func isConfigRequest(attributes map[string]string) bool {
	ttd := attributes[AttrTTD]

	if attributes[AttrContentType] == ContentTypeEmptyNotification && ttd == deviceConnectionTTD {
		return true
	}
	if attributes[AttrOrigAdapter] == httpAdapterName && ttd != "" {
		return true
	}
	return false
}
