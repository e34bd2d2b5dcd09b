package pubsub

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sotec-iot/device-communication/internal/platform/logger"

	gcppubsub "cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
)

// SubscriberSettings bounds the worker pool that dispatches inbound
// messages. Handlers run on these goroutines, so slow handler work never
// blocks the grpc stream itself.
type SubscriberSettings struct {
	NumGoroutines          int
	MaxOutstandingMessages int
}

type activeSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// GoogleMessaging implements Messaging on Google Cloud Pub/Sub. Topic
// publishers are cached per topic id; subscriptions run one Receive loop
// each, tracked so they can be torn down per tenant or all at once.
type GoogleMessaging struct {
	client   *gcppubsub.Client
	settings SubscriberSettings

	topicsMu sync.Mutex
	topics   map[string]*gcppubsub.Topic

	subsMu sync.Mutex
	subs   map[string]*activeSubscription
}

func NewGoogleMessaging(client *gcppubsub.Client, settings SubscriberSettings) *GoogleMessaging {
	if settings.NumGoroutines <= 0 {
		settings.NumGoroutines = 4
	}
	if settings.MaxOutstandingMessages <= 0 {
		settings.MaxOutstandingMessages = 100
	}

	return &GoogleMessaging{
		client:   client,
		settings: settings,
		topics:   make(map[string]*gcppubsub.Topic),
		subs:     make(map[string]*activeSubscription),
	}
}

func (gm *GoogleMessaging) topic(topicID string) *gcppubsub.Topic {
	gm.topicsMu.Lock()
	defer gm.topicsMu.Unlock()

	topic, exists := gm.topics[topicID]
	if exists == false {
		topic = gm.client.Topic(topicID)
		gm.topics[topicID] = topic
	}

	return topic
}

// Publish publishes the payload and blocks until the transport confirms or
// rejects it, so an unknown topic surfaces as an error to the caller.
func (gm *GoogleMessaging) Publish(ctx context.Context, topicID string, payload []byte, attributes map[string]string) error {
	result := gm.topic(topicID).Publish(ctx, &gcppubsub.Message{
		Data:       payload,
		Attributes: attributes,
	})

	_, err := result.Get(ctx)
	return err
}

// Subscribe attaches a handler to the subscription and starts its Receive
// loop. Subscribing twice to the same subscription is a no-op.
func (gm *GoogleMessaging) Subscribe(ctx context.Context, subscriptionID string, handler MessageHandler) error {
	gm.subsMu.Lock()
	defer gm.subsMu.Unlock()

	if _, exists := gm.subs[subscriptionID]; exists {
		return nil
	}

	sub := gm.client.Subscription(subscriptionID)
	sub.ReceiveSettings.NumGoroutines = gm.settings.NumGoroutines
	sub.ReceiveSettings.MaxOutstandingMessages = gm.settings.MaxOutstandingMessages

	receiveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	gm.subs[subscriptionID] = &activeSubscription{cancel: cancel, done: done}

	go func() {
		defer close(done)

		err := sub.Receive(receiveCtx, func(msgCtx context.Context, msg *gcppubsub.Message) {
			handler(msgCtx, Message{Data: msg.Data, Attributes: msg.Attributes}, msg.Ack)
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithFields(logrus.Fields{"error": err, "subscription": subscriptionID}).Error("Subscription receive loop exited")
		}
	}()

	logger.Log.WithFields(logrus.Fields{"subscription": subscriptionID}).Info("Subscribed")

	return nil
}

// CloseSubscribersForTenant stops and waits for every receive loop whose
// subscription belongs to the tenant, and returns how many it closed. Must
// run before the tenant's resources are deleted so no handler processes
// against vanishing state.
func (gm *GoogleMessaging) CloseSubscribersForTenant(tenant string) int {
	prefix := tenant + "."

	gm.subsMu.Lock()
	closing := make(map[string]*activeSubscription)
	for id, sub := range gm.subs {
		if strings.HasPrefix(id, prefix) {
			closing[id] = sub
			delete(gm.subs, id)
		}
	}
	gm.subsMu.Unlock()

	for id, sub := range closing {
		sub.cancel()
		<-sub.done
		logger.Log.WithFields(logrus.Fields{"subscription": id}).Info("Closed subscriber")
	}

	return len(closing)
}

// Close stops every receive loop and every topic publisher.
func (gm *GoogleMessaging) Close() {
	gm.subsMu.Lock()
	closing := gm.subs
	gm.subs = make(map[string]*activeSubscription)
	gm.subsMu.Unlock()

	for _, sub := range closing {
		sub.cancel()
		<-sub.done
	}

	gm.topicsMu.Lock()
	defer gm.topicsMu.Unlock()
	for _, topic := range gm.topics {
		topic.Stop()
	}
	gm.topics = make(map[string]*gcppubsub.Topic)
}
