package delivery

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/sotec-iot/device-communication/internal/correlation"
	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/pubsub"
	"github.com/sotec-iot/device-communication/internal/storage"

	"github.com/go-playground/assert/v2"
)

func buildHandlersFixture(t *testing.T) (*Handlers, *fakePublisher, *correlation.Registry, *storage.InMemoryRepository) {
	t.Helper()

	publisher := newFakePublisher()
	registry := correlation.NewRegistry()
	repository := storage.NewInMemoryRepository()
	repository.RegisterDevice("tenant-1", "device-1")

	coordinator := NewCoordinator(publisher, registry, repository, NewConfigRecorder(repository))

	policy := Policy{
		AckTimeout:        time.Second,
		MaxRetries:        3,
		InitialRetryDelay: 10 * time.Millisecond,
		MaxRetryDelay:     20 * time.Millisecond,
	}

	return NewHandlers(coordinator, registry, repository, repository, policy), publisher, registry, repository
}

func TestCommandResponseResolvesPendingDelivery(t *testing.T) {
	handlers, _, registry, _ := buildHandlersFixture(t)

	completion := correlation.NewCompletion()
	registry.Put("tenant-1", "device-1", "corr-1", completion)

	var acked bool
	handlers.CommandResponse(context.Background(), pubsub.Message{
		Attributes: map[string]string{
			AttrTenantID:      "tenant-1",
			AttrDeviceID:      "device-1",
			AttrCorrelationID: "corr-1",
			AttrContentType:   ContentTypeDeliverySuccessNotification,
		},
	}, func() { acked = true })

	assert.Equal(t, acked, true)
	assert.Equal(t, completion.Resolved(), true)
	assert.Equal(t, registry.Size(), 0)

	outcome, err := completion.Outcome()
	assert.Equal(t, outcome, domain.AckReceived)
	assert.Equal(t, err, nil)
}

func TestCommandResponseFailureNotification(t *testing.T) {
	handlers, _, registry, _ := buildHandlersFixture(t)

	completion := correlation.NewCompletion()
	registry.Put("tenant-1", "device-1", "corr-1", completion)

	handlers.CommandResponse(context.Background(), pubsub.Message{
		Data: []byte("device rejected the command"),
		Attributes: map[string]string{
			AttrTenantID:      "tenant-1",
			AttrDeviceID:      "device-1",
			AttrCorrelationID: "corr-1",
			AttrContentType:   ContentTypeDeliveryFailureNotification,
		},
	}, func() {})

	outcome, err := completion.Outcome()
	assert.Equal(t, outcome, domain.TransportError)
	assert.Equal(t, err, ErrDeliveryFailed)
}

func TestCommandResponseWithoutCorrelationID(t *testing.T) {
	handlers, _, registry, _ := buildHandlersFixture(t)

	completion := correlation.NewCompletion()
	registry.Put("tenant-1", "device-1", "corr-1", completion)

	var acked bool
	handlers.CommandResponse(context.Background(), pubsub.Message{
		Attributes: map[string]string{
			AttrTenantID: "tenant-1",
			AttrDeviceID: "device-1",
		},
	}, func() { acked = true })

	assert.Equal(t, acked, true)
	assert.Equal(t, completion.Resolved(), false)
	assert.Equal(t, registry.Size(), 1)
}

func TestCommandResponseUnknownCorrelationIDIsIgnored(t *testing.T) {
	handlers, _, _, _ := buildHandlersFixture(t)

	var acked bool
	handlers.CommandResponse(context.Background(), pubsub.Message{
		Attributes: map[string]string{
			AttrTenantID:      "tenant-1",
			AttrDeviceID:      "device-1",
			AttrCorrelationID: "long-gone",
			AttrContentType:   ContentTypeDeliverySuccessNotification,
		},
	}, func() { acked = true })

	assert.Equal(t, acked, true)
}

func TestIsConfigRequest(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		expected   bool
	}{
		{
			name: "mqtt connect empty notification",
			attributes: map[string]string{
				AttrContentType: ContentTypeEmptyNotification,
				AttrTTD:         "-1",
			},
			expected: true,
		},
		{
			name: "http adapter polling with ttd",
			attributes: map[string]string{
				AttrOrigAdapter: "hono-http",
				AttrTTD:         "20",
			},
			expected: true,
		},
		{
			name: "empty notification with finite ttd",
			attributes: map[string]string{
				AttrContentType: ContentTypeEmptyNotification,
				AttrTTD:         "20",
			},
			expected: false,
		},
		{
			name: "http adapter event without ttd",
			attributes: map[string]string{
				AttrOrigAdapter: "hono-http",
			},
			expected: false,
		},
		{
			name:       "plain telemetry event",
			attributes: map[string]string{},
			expected:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, isConfigRequest(tc.attributes), tc.expected)
		})
	}
}

func TestConfigRequestPushesLatestConfig(t *testing.T) {
	handlers, publisher, registry, repository := buildHandlersFixture(t)

	repository.StoreConfig(domain.ConfigRecord{
		TenantID:   "tenant-1",
		DeviceID:   "device-1",
		Version:    2,
		BinaryData: base64.StdEncoding.EncodeToString([]byte("old-settings")),
	})
	repository.StoreConfig(domain.ConfigRecord{
		TenantID:   "tenant-1",
		DeviceID:   "device-1",
		Version:    3,
		BinaryData: base64.StdEncoding.EncodeToString([]byte("new-settings")),
	})

	handlers.ConfigRequest(context.Background(), pubsub.Message{
		Attributes: map[string]string{
			AttrTenantID:    "tenant-1",
			AttrDeviceID:    "device-1",
			AttrContentType: ContentTypeEmptyNotification,
			AttrTTD:         "-1",
			AttrOrigAddress: "event/tenant-1/device-1",
		},
	}, func() {})

	msg := publisher.waitForPublish(t)
	assert.Equal(t, msg.topic, "tenant-1.command")
	assert.Equal(t, msg.attributes[AttrSubject], SubjectConfig)
	assert.Equal(t, msg.attributes[AttrCorrelationID], "3")
	assert.Equal(t, string(msg.payload), "new-settings")

	// The device acknowledges the pushed version.
	handlers.CommandResponse(context.Background(), pubsub.Message{
		Attributes: map[string]string{
			AttrTenantID:      "tenant-1",
			AttrDeviceID:      "device-1",
			AttrCorrelationID: "3",
			AttrContentType:   ContentTypeDeliverySuccessNotification,
		},
	}, func() {})

	deadline := time.Now().Add(time.Second)
	for {
		record, err := repository.GetLatestConfigVersion(context.Background(), "tenant-1", "device-1")
		assert.Equal(t, err, nil)
		if record.DeviceAckTime != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("the acknowledgement was never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, registry.Size(), 0)
}

func TestConfigRequestWithoutStoredConfig(t *testing.T) {
	handlers, publisher, _, _ := buildHandlersFixture(t)

	handlers.ConfigRequest(context.Background(), pubsub.Message{
		Attributes: map[string]string{
			AttrTenantID:    "tenant-1",
			AttrDeviceID:    "device-1",
			AttrContentType: ContentTypeEmptyNotification,
			AttrTTD:         "-1",
		},
	}, func() {})

	assert.Equal(t, publisher.publishCount(), 0)
}

func TestConfigRequestIgnoresOrdinaryEvents(t *testing.T) {
	handlers, publisher, _, repository := buildHandlersFixture(t)

	repository.StoreConfig(domain.ConfigRecord{
		TenantID:   "tenant-1",
		DeviceID:   "device-1",
		Version:    1,
		BinaryData: base64.StdEncoding.EncodeToString([]byte("settings")),
	})

	handlers.ConfigRequest(context.Background(), pubsub.Message{
		Data: []byte("temperature reading"),
		Attributes: map[string]string{
			AttrTenantID: "tenant-1",
			AttrDeviceID: "device-1",
		},
	}, func() {})

	assert.Equal(t, publisher.publishCount(), 0)
}

func TestDeviceStateRecorded(t *testing.T) {
	handlers, _, _, repository := buildHandlersFixture(t)

	handlers.DeviceState(context.Background(), pubsub.Message{
		Data: []byte(`{"battery": 73}`),
		Attributes: map[string]string{
			AttrTenantID: "tenant-1",
			AttrDeviceID: "device-1",
		},
	}, func() {})

	payload, exists := repository.DeviceStateFor("tenant-1", "device-1")
	assert.Equal(t, exists, true)
	assert.Equal(t, string(payload), `{"battery": 73}`)
}
