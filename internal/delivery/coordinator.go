package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sotec-iot/device-communication/internal/correlation"
	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/pubsub"
	"github.com/sotec-iot/device-communication/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrDeviceNotAvailable = errors.New("the device did not acknowledge the delivery in time")
	ErrMaxRetriesExceeded = errors.New("max retries reached, no acknowledgement received")
	ErrSuperseded         = errors.New("delivery superseded by a newer delivery for the same correlation key")
	ErrDeviceNotFound     = errors.New("device is not known to the device registry")
	ErrDeliveryFailed     = errors.New("the adapter reported a delivery failure")
)

// Recorder receives delivery lifecycle notifications so external state (for
// example a stored config version's acknowledgement timestamp) can be kept
// current. Calls are fire and forget; the coordinator never blocks delivery
// resolution on them.
type Recorder interface {
	DeliveryPublished(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, correlationID string)
	DeliveryAcked(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, correlationID string, ackTime time.Time)
	DeliveryFailed(ctx context.Context, tenant domain.TenantID, device domain.DeviceID, correlationID string, reason string)
}

// Request describes one delivery to one device.
type Request struct {
	Tenant  domain.TenantID
	Device  domain.DeviceID
	Payload []byte
	Subject string
	Mode    domain.DeliveryMode
	Policy  Policy
}

// Coordinator implements the publish-with-acknowledgement protocol on top of
// the at-least-once transport. It owns no state beyond the injected
// acknowledgement registry.
type Coordinator struct {
	publisher pubsub.Publisher
	registry  *correlation.Registry
	devices   storage.DeviceRepository
	recorder  Recorder
}

func NewCoordinator(publisher pubsub.Publisher, registry *correlation.Registry, devices storage.DeviceRepository, recorder Recorder) *Coordinator {
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Coordinator{
		publisher: publisher,
		registry:  registry,
		devices:   devices,
		recorder:  recorder,
	}
}

// Deliver publishes the payload to the tenant's command topic and, depending
// on the mode, waits for the device's acknowledgement. It blocks until the
// delivery reaches a terminal outcome.
func (c *Coordinator) Deliver(ctx context.Context, req Request) (domain.DeliveryOutcome, error) {
	if req.Tenant == "" || req.Device == "" {
		return domain.InvalidInput, correlation.ErrInvalidKey
	}

	exists, err := c.devices.DeviceExists(ctx, req.Tenant, req.Device)
	if err != nil {
		return domain.TransportError, fmt.Errorf("device lookup failed: %w", err)
	}
	if exists == false {
		return domain.DeviceNotFound, fmt.Errorf("%w: tenant %s, device %s", ErrDeviceNotFound, req.Tenant, req.Device)
	}

	if req.Subject == "" {
		req.Subject = SubjectCommand
	}

	switch req.Mode {
	case domain.FireAndForget:
		return c.deliverFireAndForget(ctx, req)
	case domain.AckRequired, domain.AckWithRetry:
		return c.deliverWithAck(ctx, req)
	}

	return domain.InvalidInput, fmt.Errorf("unknown delivery mode %d", req.Mode)
}

func (c *Coordinator) deliverFireAndForget(ctx context.Context, req Request) (domain.DeliveryOutcome, error) {
	attributes := c.buildAttributes(req, req.Policy.CorrelationID, false)

	err := c.publish(ctx, req, attributes)
	if err != nil {
		metrics.deliveryOutcomeCounter.WithLabelValues(domain.TransportError.String()).Inc()
		return domain.TransportError, err
	}

	metrics.deliveryOutcomeCounter.WithLabelValues(domain.Delivered.String()).Inc()
	return domain.Delivered, nil
}

func (c *Coordinator) deliverWithAck(ctx context.Context, req Request) (domain.DeliveryOutcome, error) {
	policy := req.Policy.normalized()

	correlationID := policy.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	log := logger.Log.WithFields(logrus.Fields{
		"tenant_id":      req.Tenant,
		"device_id":      req.Device,
		"correlation_id": correlationID,
		"mode":           req.Mode.String(),
	})

	completion := correlation.NewCompletion()

	previous, err := c.registry.Put(req.Tenant, req.Device, correlationID, completion)
	if err != nil {
		return domain.InvalidInput, err
	}

	// The swap already made the old entry unreachable; failing it here keeps
	// its caller from waiting forever.
	if previous != nil {
		if previous.Resolve(domain.Superseded, ErrSuperseded) {
			metrics.supersededCounter.Inc()
			log.Info("Superseded an older pending delivery for the same correlation key")
		}
	}

	metrics.pendingAckGauge.Inc()
	defer metrics.pendingAckGauge.Dec()

	attributes := c.buildAttributes(req, correlationID, true)

	err = c.publish(ctx, req, attributes)
	if err != nil {
		if req.Mode == domain.AckRequired {
			c.registry.RemoveIf(req.Tenant, req.Device, correlationID, completion)
			completion.Resolve(domain.TransportError, err)
			return c.waitForOutcome(ctx, req, correlationID, completion)
		}
		// A retryable delivery survives a transient publish error; the retry
		// loop will publish again.
		log.WithFields(logrus.Fields{"error": err}).Error("Initial publish failed, continuing with retries")
	} else {
		go c.recorder.DeliveryPublished(context.WithoutCancel(ctx), req.Tenant, req.Device, correlationID)
	}

	switch req.Mode {
	case domain.AckRequired:
		c.armSingleTimeout(req, correlationID, completion, policy, log)
	case domain.AckWithRetry:
		go c.runRetryLoop(req, correlationID, completion, policy, log)
	}

	return c.waitForOutcome(ctx, req, correlationID, completion)
}

// armSingleTimeout starts the one timer an AckRequired delivery owns. The
// timer firing after the entry was resolved is a no-op: RemoveIf refuses once
// the inbound path claimed the entry or a newer delivery replaced it.
func (c *Coordinator) armSingleTimeout(req Request, correlationID string, completion *correlation.Completion, policy Policy, log *logrus.Entry) {
	timer := time.AfterFunc(policy.AckTimeout, func() {
		if c.registry.RemoveIf(req.Tenant, req.Device, correlationID, completion) == false {
			return
		}
		if completion.Resolve(domain.DeviceNotAvailable, ErrDeviceNotAvailable) {
			log.Info("Acknowledgement timeout exceeded")
			go c.recorder.DeliveryFailed(context.Background(), req.Tenant, req.Device, correlationID, ErrDeviceNotAvailable.Error())
		}
	})

	go func() {
		<-completion.Done()
		// Stop after fire is fine; the callback handles the race.
		timer.Stop()
	}()
}

// runRetryLoop owns the single live timer of an AckWithRetry delivery. One
// republish is in flight at a time; resolution of the completion (ack,
// failure notification, supersede) stops the loop at the next select.
func (c *Coordinator) runRetryLoop(req Request, correlationID string, completion *correlation.Completion, policy Policy, log *logrus.Entry) {
	attributes := c.buildAttributes(req, correlationID, true)
	delay := policy.InitialRetryDelay

	for attempt := 0; ; attempt++ {
		timer := time.NewTimer(delay)

		select {
		case <-completion.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if attempt >= policy.MaxRetries {
			if c.registry.RemoveIf(req.Tenant, req.Device, correlationID, completion) == false {
				return
			}
			if completion.Resolve(domain.MaxRetriesExceeded, ErrMaxRetriesExceeded) {
				log.WithFields(logrus.Fields{"retries": policy.MaxRetries}).Info("Max retries reached, no acknowledgement received")
				go c.recorder.DeliveryFailed(context.Background(), req.Tenant, req.Device, correlationID, ErrMaxRetriesExceeded.Error())
			}
			return
		}

		err := c.publish(context.Background(), req, attributes)
		if err != nil {
			// A single transient publish error must not cancel an otherwise
			// retryable delivery.
			log.WithFields(logrus.Fields{"error": err, "attempt": attempt + 1}).Error("Republish failed")
		} else {
			metrics.republishCounter.Inc()
			go c.recorder.DeliveryPublished(context.Background(), req.Tenant, req.Device, correlationID)
		}

		delay = nextRetryDelay(delay, policy.MaxRetryDelay)
	}
}

func (c *Coordinator) waitForOutcome(ctx context.Context, req Request, correlationID string, completion *correlation.Completion) (domain.DeliveryOutcome, error) {
	select {
	case <-completion.Done():
	case <-ctx.Done():
		if c.registry.RemoveIf(req.Tenant, req.Device, correlationID, completion) {
			completion.Resolve(domain.TransportError, ctx.Err())
		}
		<-completion.Done()
	}

	outcome, err := completion.Outcome()
	metrics.deliveryOutcomeCounter.WithLabelValues(outcome.String()).Inc()
	return outcome, err
}

func (c *Coordinator) publish(ctx context.Context, req Request, attributes map[string]string) error {
	topic := domain.TopicID(req.Tenant, domain.EndpointCommand)

	err := c.publisher.Publish(ctx, topic, req.Payload, attributes)
	if err != nil {
		metrics.publishFailureCounter.Inc()
		return fmt.Errorf("unable to publish to topic %s: %w", topic, err)
	}

	metrics.publishCounter.Inc()
	return nil
}

func (c *Coordinator) buildAttributes(req Request, correlationID string, ackRequired bool) map[string]string {
	attributes := map[string]string{
		AttrTenantID: req.Tenant.String(),
		AttrDeviceID: req.Device.String(),
		AttrSubject:  req.Subject,
	}

	if correlationID != "" {
		attributes[AttrCorrelationID] = correlationID
	}
	if ackRequired {
		attributes[AttrAckRequired] = "true"
		attributes[AttrResponseRequired] = strconv.FormatBool(req.Policy.ResponseRequired)
	} else if req.Policy.ResponseRequired {
		attributes[AttrResponseRequired] = "true"
	}

	return attributes
}

type noopRecorder struct{}

func (noopRecorder) DeliveryPublished(context.Context, domain.TenantID, domain.DeviceID, string) {}
func (noopRecorder) DeliveryAcked(context.Context, domain.TenantID, domain.DeviceID, string, time.Time) {
}
func (noopRecorder) DeliveryFailed(context.Context, domain.TenantID, domain.DeviceID, string, string) {
}
