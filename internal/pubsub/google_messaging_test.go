package pubsub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sotec-iot/device-communication/internal/platform/logger"

	gcppubsub "cloud.google.com/go/pubsub"
	pb "cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func init() {
	logger.InitLogger()
}

const testProject = "test-project"

func setupMessagingTest(t *testing.T) (*GoogleMessaging, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := gcppubsub.NewClient(ctx, testProject, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	messaging := NewGoogleMessaging(client, SubscriberSettings{NumGoroutines: 1, MaxOutstandingMessages: 10})
	t.Cleanup(messaging.Close)

	return messaging, srv
}

func createTopicAndSubscription(t *testing.T, srv *pstest.Server, topicID, subscriptionID string) {
	t.Helper()
	ctx := context.Background()

	topicName := fmt.Sprintf("projects/%s/topics/%s", testProject, topicID)
	_, err := srv.GServer.CreateTopic(ctx, &pb.Topic{Name: topicName})
	require.NoError(t, err)

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", testProject, subscriptionID)
	_, err = srv.GServer.CreateSubscription(ctx, &pb.Subscription{
		Name:  subName,
		Topic: topicName,
	})
	require.NoError(t, err)
}

func waitForMessage(t *testing.T, received chan Message) Message {
	t.Helper()
	select {
	case msg := <-received:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message was received")
		return Message{}
	}
}

func TestPublishAndReceiveRoundTrip(t *testing.T) {
	messaging, srv := setupMessagingTest(t)
	createTopicAndSubscription(t, srv, "tenant-1.event", "tenant-1.event-api")

	ctx := context.Background()

	received := make(chan Message, 1)
	err := messaging.Subscribe(ctx, "tenant-1.event-api", func(ctx context.Context, msg Message, ack func()) {
		ack()
		received <- msg
	})
	require.NoError(t, err)

	err = messaging.Publish(ctx, "tenant-1.event", []byte("temperature reading"), map[string]string{
		"tenant_id": "tenant-1",
		"device_id": "device-1",
	})
	require.NoError(t, err)

	msg := waitForMessage(t, received)
	assert.Equal(t, []byte("temperature reading"), msg.Data)
	assert.Equal(t, "tenant-1", msg.Attributes["tenant_id"])
	assert.Equal(t, "device-1", msg.Attributes["device_id"])
}

func TestPublishToUnknownTopicFails(t *testing.T) {
	messaging, _ := setupMessagingTest(t)

	err := messaging.Publish(context.Background(), "no-such-tenant.command", []byte("payload"), nil)
	assert.Error(t, err)
}

func TestSubscribeTwiceIsNoop(t *testing.T) {
	messaging, srv := setupMessagingTest(t)
	createTopicAndSubscription(t, srv, "tenant-1.event", "tenant-1.event-api")

	ctx := context.Background()

	received := make(chan Message, 2)
	handler := func(ctx context.Context, msg Message, ack func()) {
		ack()
		received <- msg
	}

	require.NoError(t, messaging.Subscribe(ctx, "tenant-1.event-api", handler))
	require.NoError(t, messaging.Subscribe(ctx, "tenant-1.event-api", handler))

	require.NoError(t, messaging.Publish(ctx, "tenant-1.event", []byte("once"), nil))

	waitForMessage(t, received)
	select {
	case <-received:
		t.Fatal("the message was delivered twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseSubscribersForTenant(t *testing.T) {
	messaging, srv := setupMessagingTest(t)
	createTopicAndSubscription(t, srv, "tenant-1.event", "tenant-1.event-api")
	createTopicAndSubscription(t, srv, "tenant-2.event", "tenant-2.event-api")

	ctx := context.Background()

	tenant1 := make(chan Message, 1)
	tenant2 := make(chan Message, 1)
	require.NoError(t, messaging.Subscribe(ctx, "tenant-1.event-api", func(ctx context.Context, msg Message, ack func()) {
		ack()
		tenant1 <- msg
	}))
	require.NoError(t, messaging.Subscribe(ctx, "tenant-2.event-api", func(ctx context.Context, msg Message, ack func()) {
		ack()
		tenant2 <- msg
	}))

	assert.Equal(t, 1, messaging.CloseSubscribersForTenant("tenant-1"))
	assert.Equal(t, 0, messaging.CloseSubscribersForTenant("tenant-1"))

	// The closed tenant's subscription can be attached again, proving its
	// receive loop was fully torn down rather than leaked.
	reattached := make(chan Message, 1)
	require.NoError(t, messaging.Subscribe(ctx, "tenant-1.event-api", func(ctx context.Context, msg Message, ack func()) {
		ack()
		reattached <- msg
	}))

	require.NoError(t, messaging.Publish(ctx, "tenant-1.event", []byte("for tenant 1"), nil))
	require.NoError(t, messaging.Publish(ctx, "tenant-2.event", []byte("for tenant 2"), nil))

	assert.Equal(t, []byte("for tenant 1"), waitForMessage(t, reattached).Data)
	assert.Equal(t, []byte("for tenant 2"), waitForMessage(t, tenant2).Data)

	select {
	case <-tenant1:
		t.Fatal("the closed subscriber still received a message")
	case <-time.After(100 * time.Millisecond):
	}
}
