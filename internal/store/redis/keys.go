package redis

const (
	// KeyPrefixSubscription is the prefix for subscription keys
	KeyPrefixSubscription = "fedgate:subscription:"
	// KeyAllSubscriptions is the key for the set of all subscription IDs
	KeyAllSubscriptions = "fedgate:subscriptions:all"
)

// SubscriptionKey returns the Redis key for a subscription by ID
func SubscriptionKey(id string) string {
	return KeyPrefixSubscription + id
}
