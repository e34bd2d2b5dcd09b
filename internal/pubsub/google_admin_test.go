package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func setupAdminTest(t *testing.T) *GoogleAdminClient {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	admin, err := NewGoogleAdminClient(ctx, testProject, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	return admin
}

func TestCreateTopicIsIdempotent(t *testing.T) {
	admin := setupAdminTest(t)
	ctx := context.Background()

	require.NoError(t, admin.CreateTopic(ctx, "tenant-1.command"))
	require.NoError(t, admin.CreateTopic(ctx, "tenant-1.command"))

	topics, err := admin.ListTopicIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-1.command"}, topics)
}

func TestCreateSubscriptionIsIdempotent(t *testing.T) {
	admin := setupAdminTest(t)
	ctx := context.Background()

	require.NoError(t, admin.CreateTopic(ctx, "tenant-1.event"))
	require.NoError(t, admin.CreateSubscription(ctx, "tenant-1.event-api", "tenant-1.event"))
	require.NoError(t, admin.CreateSubscription(ctx, "tenant-1.event-api", "tenant-1.event"))

	subscriptions, err := admin.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subscriptions, 1)
	assert.Equal(t, "tenant-1.event-api", subscriptions[0].ID)
	assert.Equal(t, "tenant-1.event", subscriptions[0].TopicID)
}

func TestCreateSubscriptionUnknownTopicFails(t *testing.T) {
	admin := setupAdminTest(t)

	err := admin.CreateSubscription(context.Background(), "tenant-1.event-api", "tenant-1.event")
	assert.Error(t, err)
}

func TestDeleteToleratesAbsentResources(t *testing.T) {
	admin := setupAdminTest(t)
	ctx := context.Background()

	assert.NoError(t, admin.DeleteTopic(ctx, "never-created"))
	assert.NoError(t, admin.DeleteSubscription(ctx, "never-created"))
}

func TestDeleteRemovesResources(t *testing.T) {
	admin := setupAdminTest(t)
	ctx := context.Background()

	require.NoError(t, admin.CreateTopic(ctx, "tenant-1.event"))
	require.NoError(t, admin.CreateSubscription(ctx, "tenant-1.event-api", "tenant-1.event"))

	require.NoError(t, admin.DeleteSubscription(ctx, "tenant-1.event-api"))
	require.NoError(t, admin.DeleteTopic(ctx, "tenant-1.event"))

	topics, err := admin.ListTopicIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, topics, 0)

	subscriptions, err := admin.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subscriptions, 0)
}

func TestListIDsAreShortIDs(t *testing.T) {
	admin := setupAdminTest(t)
	ctx := context.Background()

	require.NoError(t, admin.CreateTopic(ctx, "tenant-1.event.state"))
	require.NoError(t, admin.CreateSubscription(ctx, "tenant-1.event.state-api", "tenant-1.event.state"))

	topics, err := admin.ListTopicIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-1.event.state"}, topics)

	subscriptions, err := admin.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subscriptions, 1)
	assert.Equal(t, "tenant-1.event.state-api", subscriptions[0].ID)
	assert.Equal(t, "tenant-1.event.state", subscriptions[0].TopicID)
}
