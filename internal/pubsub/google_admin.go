package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apiv1 "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GoogleAdminClient implements AdminClient against the Pub/Sub admin API.
// All methods take and return short resource ids; the project scoping is
// this client's concern.
type GoogleAdminClient struct {
	projectID  string
	publisher  *apiv1.PublisherClient
	subscriber *apiv1.SubscriberClient
}

func NewGoogleAdminClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*GoogleAdminClient, error) {
	publisher, err := apiv1.NewPublisherClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create topic admin client: %w", err)
	}

	subscriber, err := apiv1.NewSubscriberClient(ctx, opts...)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("unable to create subscription admin client: %w", err)
	}

	return &GoogleAdminClient{
		projectID:  projectID,
		publisher:  publisher,
		subscriber: subscriber,
	}, nil
}

func (ac *GoogleAdminClient) topicName(topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", ac.projectID, topicID)
}

func (ac *GoogleAdminClient) subscriptionName(subscriptionID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", ac.projectID, subscriptionID)
}

func shortID(resourceName string) string {
	idx := strings.LastIndex(resourceName, "/")
	if idx < 0 {
		return resourceName
	}
	return resourceName[idx+1:]
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (ac *GoogleAdminClient) CreateTopic(ctx context.Context, topicID string) error {
	_, err := ac.publisher.CreateTopic(ctx, &pubsubpb.Topic{Name: ac.topicName(topicID)})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("unable to create topic %s: %w", topicID, err)
	}
	return nil
}

func (ac *GoogleAdminClient) CreateSubscription(ctx context.Context, subscriptionID string, topicID string) error {
	_, err := ac.subscriber.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  ac.subscriptionName(subscriptionID),
		Topic: ac.topicName(topicID),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("unable to create subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (ac *GoogleAdminClient) ListTopicIDs(ctx context.Context) ([]string, error) {
	var topicIDs []string

	it := ac.publisher.ListTopics(ctx, &pubsubpb.ListTopicsRequest{
		Project: "projects/" + ac.projectID,
	})

	for {
		topic, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to list topics: %w", err)
		}
		topicIDs = append(topicIDs, shortID(topic.GetName()))
	}

	return topicIDs, nil
}

func (ac *GoogleAdminClient) ListSubscriptions(ctx context.Context) ([]SubscriptionInfo, error) {
	var subscriptions []SubscriptionInfo

	it := ac.subscriber.ListSubscriptions(ctx, &pubsubpb.ListSubscriptionsRequest{
		Project: "projects/" + ac.projectID,
	})

	for {
		sub, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to list subscriptions: %w", err)
		}

		topicID := sub.GetTopic()
		if topicID != DeletedTopic {
			topicID = shortID(topicID)
		}

		subscriptions = append(subscriptions, SubscriptionInfo{
			ID:      shortID(sub.GetName()),
			TopicID: topicID,
		})
	}

	return subscriptions, nil
}

func (ac *GoogleAdminClient) DeleteTopic(ctx context.Context, topicID string) error {
	err := ac.publisher.DeleteTopic(ctx, &pubsubpb.DeleteTopicRequest{Topic: ac.topicName(topicID)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("unable to delete topic %s: %w", topicID, err)
	}
	return nil
}

func (ac *GoogleAdminClient) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	err := ac.subscriber.DeleteSubscription(ctx, &pubsubpb.DeleteSubscriptionRequest{
		Subscription: ac.subscriptionName(subscriptionID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("unable to delete subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (ac *GoogleAdminClient) Close() error {
	pubErr := ac.publisher.Close()
	subErr := ac.subscriber.Close()
	return errors.Join(pubErr, subErr)
}
