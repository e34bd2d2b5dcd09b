package domain

import "time"

type TenantID string

func (tid TenantID) String() string {
	return string(tid)
}

type DeviceID string

func (did DeviceID) String() string {
	return string(did)
}

// DeliveryMode selects the acknowledgement protocol used for a single delivery.
type DeliveryMode int

const (
	FireAndForget DeliveryMode = iota
	AckRequired
	AckWithRetry
)

func (m DeliveryMode) String() string {
	switch m {
	case FireAndForget:
		return "fire_and_forget"
	case AckRequired:
		return "ack_required"
	case AckWithRetry:
		return "ack_with_retry"
	}
	return "unknown"
}

// DeliveryOutcome is the machine readable result of a delivery attempt.
// The HTTP layer maps these to status codes.
type DeliveryOutcome string

const (
	Delivered          DeliveryOutcome = "delivered"
	AckReceived        DeliveryOutcome = "ack_received"
	DeviceNotAvailable DeliveryOutcome = "device_not_available"
	MaxRetriesExceeded DeliveryOutcome = "max_retries_exceeded"
	InvalidInput       DeliveryOutcome = "invalid_input"
	DeviceNotFound     DeliveryOutcome = "device_not_found"
	TransportError     DeliveryOutcome = "transport_error"
	Superseded         DeliveryOutcome = "superseded"
)

func (o DeliveryOutcome) String() string {
	return string(o)
}

// ConfigRecord is one stored version of a device configuration. BinaryData
// carries the payload base64 encoded, exactly as it was submitted.
type ConfigRecord struct {
	TenantID        TenantID
	DeviceID        DeviceID
	Version         int
	BinaryData      string
	CloudUpdateTime time.Time
	DeviceAckTime   *time.Time
	LastError       string
}
