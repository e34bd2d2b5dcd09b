package domain

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestTopicAndSubscriptionNaming(t *testing.T) {
	tests := []struct {
		endpoint             Endpoint
		expectedTopic        string
		expectedSubscription string
	}{
		{endpoint: EndpointTelemetry, expectedTopic: "tenant-1.telemetry", expectedSubscription: "tenant-1.telemetry"},
		{endpoint: EndpointEvent, expectedTopic: "tenant-1.event", expectedSubscription: "tenant-1.event"},
		{endpoint: EndpointCommand, expectedTopic: "tenant-1.command", expectedSubscription: "tenant-1.command"},
		{endpoint: EndpointCommandResponse, expectedTopic: "tenant-1.command_response", expectedSubscription: "tenant-1.command_response"},
		{endpoint: EndpointEventState, expectedTopic: "tenant-1.event.state", expectedSubscription: "tenant-1.event.state"},
	}

	for _, tc := range tests {
		t.Run(string(tc.endpoint), func(t *testing.T) {
			assert.Equal(t, TopicID("tenant-1", tc.endpoint), tc.expectedTopic)
			assert.Equal(t, SubscriptionID("tenant-1", tc.endpoint), tc.expectedSubscription)
		})
	}
}

func TestAPISubscriptionNaming(t *testing.T) {
	assert.Equal(t, APISubscriptionID("tenant-1", EndpointEvent), "tenant-1.event-api")
	assert.Equal(t, APISubscriptionID("tenant-1", EndpointCommandResponse), "tenant-1.command_response-api")
	assert.Equal(t, APISubscriptionID("tenant-1", EndpointEventState), "tenant-1.event.state-api")
}

func TestEndpointsWithAPISubscription(t *testing.T) {
	endpoints := EndpointsWithAPISubscription()

	assert.Equal(t, len(endpoints), 3)
	assert.Equal(t, endpoints[0], EndpointEvent)
	assert.Equal(t, endpoints[1], EndpointCommandResponse)
	assert.Equal(t, endpoints[2], EndpointEventState)
}

func TestTenantNotificationNaming(t *testing.T) {
	assert.Equal(t, TenantNotificationTopic, "registry-tenant.notification")
	assert.Equal(t, TenantNotificationSubscription(), "registry-tenant.notification-api")
}
