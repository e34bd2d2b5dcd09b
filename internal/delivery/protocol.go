package delivery

// Message attribute names shared with the protocol adapters. These are wire
// contract and must not be renamed.
const (
	AttrTenantID         = "tenant_id"
	AttrDeviceID         = "device_id"
	AttrSubject          = "subject"
	AttrCorrelationID    = "correlation-id"
	AttrResponseRequired = "response-required"
	AttrAckRequired      = "ack-required"
	AttrContentType      = "content-type"
	AttrTTD              = "ttd"
	AttrOrigAdapter      = "orig_adapter"
	AttrOrigAddress      = "orig_address"
)

// Content type values used to classify inbound event and response messages.
const (
	ContentTypeEmptyNotification           = "application/vnd.eclipse-hono-empty-notification"
	ContentTypeDeliverySuccessNotification = "application/vnd.eclipse-hono-delivery-success-notification"
	ContentTypeDeliveryFailureNotification = "application/vnd.eclipse-hono-delivery-failure-notification"
)

// SubjectConfig marks a delivery as a device configuration push; anything
// else is treated as a plain command subject.
const (
	SubjectConfig  = "config"
	SubjectCommand = "command"
)

// A ttd of -1 on an empty notification means the device opened a permanent
// command channel (MQTT connect).
const deviceConnectionTTD = "-1"

const httpAdapterName = "hono-http"
