// Package redis persists webhook subscriptions so they survive gateway
// restarts. Entries have no TTL; a subscription lives until deleted.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/operatornet/fedgate/internal/subscription"
)

// Store implements subscription.Store on a Redis client.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save writes the subscription and tracks its ID in the all-subscriptions
// set. Called on create and on every watermark advance.
func (s *Store) Save(ctx context.Context, sub *subscription.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := s.client.Set(ctx, SubscriptionKey(sub.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	if err := s.client.SAdd(ctx, KeyAllSubscriptions, sub.ID).Err(); err != nil {
		return fmt.Errorf("failed to add subscription to set: %w", err)
	}
	return nil
}

// All retrieves every persisted subscription. IDs whose entries vanished are
// skipped.
func (s *Store) All(ctx context.Context) ([]*subscription.Subscription, error) {
	ids, err := s.client.SMembers(ctx, KeyAllSubscriptions).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription IDs: %w", err)
	}

	subs := make([]*subscription.Subscription, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, SubscriptionKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
		}
		var sub subscription.Subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subscription %s: %w", id, err)
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}

// Delete removes a subscription and its set membership.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, SubscriptionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if err := s.client.SRem(ctx, KeyAllSubscriptions, id).Err(); err != nil {
		return fmt.Errorf("failed to remove subscription from set: %w", err)
	}
	return nil
}
