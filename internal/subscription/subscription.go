// Package subscription delivers contract events to registered webhook
// callbacks: a registry of subscriptions and a scan loop that pushes new
// events once per cycle.
package subscription

import (
	"context"
	"time"
)

// Subscription is one webhook registration. Watermark is the highest block
// whose events were already handed to the callback; delivery is at-most-once
// and the watermark only moves forward.
type Subscription struct {
	ID          string    `json:"subscription_id"`
	EventName   string    `json:"event_name"`
	CallbackURL string    `json:"callback_url"`
	Watermark   uint64    `json:"last_n_blocks"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists subscriptions across restarts. All writes are best-effort:
// the in-memory registry stays authoritative when the store misbehaves.
type Store interface {
	Save(ctx context.Context, sub *Subscription) error
	All(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
}
