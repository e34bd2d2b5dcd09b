package pubsub

import (
	"context"
)

// DeletedTopic is the sentinel name the transport reports as a
// subscription's backing topic after that topic was deleted. A subscription
// in this state silently drops messages and must be rebound.
const DeletedTopic = "_deleted-topic_"

// Message is an inbound transport message.
type Message struct {
	Data       []byte
	Attributes map[string]string
}

// MessageHandler processes one inbound message. Handlers are invoked
// concurrently from the subscriber's worker pool and must call ack once the
// message may be discarded by the transport.
type MessageHandler func(ctx context.Context, msg Message, ack func())

// Publisher publishes a payload with attributes to a short topic id.
type Publisher interface {
	Publish(ctx context.Context, topicID string, payload []byte, attributes map[string]string) error
}

// Subscriber attaches message handlers to subscriptions and manages their
// lifetime.
type Subscriber interface {
	Subscribe(ctx context.Context, subscriptionID string, handler MessageHandler) error
	// CloseSubscribersForTenant returns how many subscribers it closed.
	CloseSubscribersForTenant(tenant string) int
	Close()
}

// Messaging is the full publish/subscribe contract the delivery protocol and
// the topology manager consume.
type Messaging interface {
	Publisher
	Subscriber
}

// SubscriptionInfo describes one existing subscription. TopicID is the short
// id of the backing topic, or the DeletedTopic sentinel.
type SubscriptionInfo struct {
	ID      string
	TopicID string
}

// AdminClient is the administrative surface of the transport. Creates
// tolerate "already exists", deletes tolerate "not found"; listings are
// point-in-time snapshots that may be stale by the time a create or delete
// executes.
type AdminClient interface {
	CreateTopic(ctx context.Context, topicID string) error
	CreateSubscription(ctx context.Context, subscriptionID string, topicID string) error
	ListTopicIDs(ctx context.Context) ([]string, error)
	ListSubscriptions(ctx context.Context) ([]SubscriptionInfo, error)
	DeleteTopic(ctx context.Context, topicID string) error
	DeleteSubscription(ctx context.Context, subscriptionID string) error
	Close() error
}
