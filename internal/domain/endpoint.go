package domain

import "fmt"

// Endpoint is one of the fixed logical channels every tenant gets a topic
// for. The names are part of the wire contract with the protocol adapters
// and must not change.
type Endpoint string

const (
	EndpointTelemetry       Endpoint = "telemetry"
	EndpointEvent           Endpoint = "event"
	EndpointCommand         Endpoint = "command"
	EndpointCommandResponse Endpoint = "command_response"
	EndpointEventState      Endpoint = "event.state"
)

// TenantNotificationTopic is the control topic the device registry publishes
// tenant lifecycle notifications on. It is provisioned by the registry, not
// by this service.
const TenantNotificationTopic = "registry-tenant.notification"

const apiSubscriptionSuffix = "-api"

// Endpoints returns every endpoint a tenant needs a topic for.
func Endpoints() []Endpoint {
	return []Endpoint{
		EndpointTelemetry,
		EndpointEvent,
		EndpointCommand,
		EndpointCommandResponse,
		EndpointEventState,
	}
}

// EndpointsWithAPISubscription returns the endpoints that carry a second,
// API owned subscription so that the protocol adapter and this service can
// each keep their own delivery cursor on the same topic.
func EndpointsWithAPISubscription() []Endpoint {
	return []Endpoint{
		EndpointEvent,
		EndpointCommandResponse,
		EndpointEventState,
	}
}

// TopicID returns the short topic id for a tenant endpoint.
func TopicID(tenant TenantID, endpoint Endpoint) string {
	return fmt.Sprintf("%s.%s", tenant, endpoint)
}

// SubscriptionID returns the id of the primary subscription bound to the
// tenant endpoint's topic.
func SubscriptionID(tenant TenantID, endpoint Endpoint) string {
	return TopicID(tenant, endpoint)
}

// APISubscriptionID returns the id of the additional API owned subscription
// for the tenant endpoint.
func APISubscriptionID(tenant TenantID, endpoint Endpoint) string {
	return TopicID(tenant, endpoint) + apiSubscriptionSuffix
}

// TenantNotificationSubscription is the subscription this service consumes
// tenant lifecycle notifications on.
func TenantNotificationSubscription() string {
	return TenantNotificationTopic + apiSubscriptionSuffix
}
