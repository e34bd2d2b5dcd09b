package topology

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sotec-iot/device-communication/internal/domain"
	"github.com/sotec-iot/device-communication/internal/platform/logger"
	"github.com/sotec-iot/device-communication/internal/pubsub"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Diff is the gap between the topology the known tenants require and what
// the transport currently has. Subscription maps go from subscription id to
// the topic id the subscription must be bound to.
type Diff struct {
	MissingTopics        []string
	MissingSubscriptions map[string]string
	FaultySubscriptions  map[string]string
}

func (d Diff) Empty() bool {
	return len(d.MissingTopics) == 0 && len(d.MissingSubscriptions) == 0 && len(d.FaultySubscriptions) == 0
}

// desiredSubscriptions returns every subscription a tenant requires, keyed
// by subscription id with the backing topic id as value.
func desiredSubscriptions(tenant domain.TenantID) map[string]string {
	desired := make(map[string]string)

	for _, endpoint := range domain.Endpoints() {
		desired[domain.SubscriptionID(tenant, endpoint)] = domain.TopicID(tenant, endpoint)
	}
	for _, endpoint := range domain.EndpointsWithAPISubscription() {
		desired[domain.APISubscriptionID(tenant, endpoint)] = domain.TopicID(tenant, endpoint)
	}

	return desired
}

// ComputeDiff compares the desired topology of the given tenants against a
// snapshot of existing topics and subscriptions. A subscription whose
// backing topic was deleted out from under it is reported as faulty, not as
// missing, because it has to be dropped before it can be recreated.
func ComputeDiff(tenants []domain.TenantID, topics []string, subscriptions []pubsub.SubscriptionInfo) Diff {
	existingTopics := make(map[string]bool, len(topics))
	for _, topic := range topics {
		existingTopics[topic] = true
	}

	existingSubscriptions := make(map[string]string, len(subscriptions))
	for _, sub := range subscriptions {
		existingSubscriptions[sub.ID] = sub.TopicID
	}

	diff := Diff{
		MissingSubscriptions: make(map[string]string),
		FaultySubscriptions:  make(map[string]string),
	}

	for _, tenant := range tenants {
		for _, endpoint := range domain.Endpoints() {
			topic := domain.TopicID(tenant, endpoint)
			if existingTopics[topic] == false {
				diff.MissingTopics = append(diff.MissingTopics, topic)
			}
		}

		for subscription, topic := range desiredSubscriptions(tenant) {
			boundTopic, exists := existingSubscriptions[subscription]
			if exists == false {
				diff.MissingSubscriptions[subscription] = topic
				continue
			}
			if boundTopic == pubsub.DeletedTopic {
				diff.FaultySubscriptions[subscription] = topic
			}
		}
	}

	return diff
}

// Reconciler applies a topology diff against the transport's admin surface.
type Reconciler struct {
	admin          pubsub.AdminClient
	maxConcurrency int
}

func NewReconciler(admin pubsub.AdminClient, maxConcurrency int) *Reconciler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	return &Reconciler{
		admin:          admin,
		maxConcurrency: maxConcurrency,
	}
}

// Apply executes the diff in three waves: topics, then subscriptions, then
// faulty rebinds. Operations within a wave run concurrently and failures do
// not stop independent work; the returned error summarizes how much of the
// diff could not be applied.
func (r *Reconciler) Apply(ctx context.Context, diff Diff) error {
	var failed atomic.Int64

	r.runWave(ctx, diff.MissingTopics, &failed, func(ctx context.Context, topic string) error {
		return r.admin.CreateTopic(ctx, topic)
	})

	subscriptionOps := make([]string, 0, len(diff.MissingSubscriptions))
	for subscription := range diff.MissingSubscriptions {
		subscriptionOps = append(subscriptionOps, subscription)
	}
	r.runWave(ctx, subscriptionOps, &failed, func(ctx context.Context, subscription string) error {
		return r.admin.CreateSubscription(ctx, subscription, diff.MissingSubscriptions[subscription])
	})

	faultyOps := make([]string, 0, len(diff.FaultySubscriptions))
	for subscription := range diff.FaultySubscriptions {
		faultyOps = append(faultyOps, subscription)
	}
	r.runWave(ctx, faultyOps, &failed, func(ctx context.Context, subscription string) error {
		return r.rebindSubscription(ctx, subscription, diff.FaultySubscriptions[subscription])
	})

	if count := failed.Load(); count > 0 {
		return fmt.Errorf("%d reconcile operations failed", count)
	}
	return nil
}

func (r *Reconciler) runWave(ctx context.Context, ids []string, failed *atomic.Int64, op func(ctx context.Context, id string) error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.maxConcurrency)

	for _, id := range ids {
		group.Go(func() error {
			err := op(groupCtx, id)
			if err != nil {
				failed.Add(1)
				metrics.reconcileFailureCounter.Inc()
				logger.Log.WithFields(logrus.Fields{"resource": id, "error": err}).Error("Reconcile operation failed")
				// Swallow the error so sibling operations keep running.
				return nil
			}
			metrics.reconcileOperationCounter.Inc()
			return nil
		})
	}

	group.Wait()
}

// rebindSubscription replaces a subscription whose topic is gone. The
// subscription is deleted first; creating it again binds it to the topic the
// tenant's topology requires, which the topic wave has already recreated.
func (r *Reconciler) rebindSubscription(ctx context.Context, subscription string, topic string) error {
	err := r.admin.DeleteSubscription(ctx, subscription)
	if err != nil {
		return fmt.Errorf("unable to drop faulty subscription %s: %w", subscription, err)
	}

	err = r.admin.CreateSubscription(ctx, subscription, topic)
	if err != nil {
		return fmt.Errorf("unable to recreate subscription %s on topic %s: %w", subscription, topic, err)
	}

	metrics.faultyRebindCounter.Inc()
	return nil
}
