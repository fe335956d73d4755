package subscription

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/logger"
)

var knownEvents = map[string]struct{}{
	contract.EventOperatorRegistered:  {},
	contract.EventOperatorRemoved:     {},
	contract.EventServiceAnnouncement: {},
	contract.EventNewBid:              {},
	contract.EventAnnouncementClosed:  {},
	contract.EventServiceDeployed:     {},
}

// Registry holds the live subscription set. A nil store keeps everything in
// memory only.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	store  Store
	logger logger.Logger
}

func NewRegistry(store Store, log logger.Logger) *Registry {
	return &Registry{
		subs:   make(map[string]*Subscription),
		store:  store,
		logger: log,
	}
}

// Load pulls persisted subscriptions into memory. Called once at startup.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	subs, err := r.store.All(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range subs {
		r.subs[sub.ID] = sub
	}
	r.logger.Info("loaded subscriptions",
		logger.Int("count", len(subs)))
	return nil
}

// Create registers a callback for an event. The watermark starts at the
// current ledger height, so only future events are delivered.
func (r *Registry) Create(ctx context.Context, eventName, callbackURL string, height uint64) (*Subscription, error) {
	if _, ok := knownEvents[eventName]; !ok {
		return nil, fault.New(fault.KindValidation, "unknown event name %q", eventName)
	}
	u, err := url.Parse(callbackURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fault.New(fault.KindValidation, "callback_url must be an absolute http(s) URL")
	}

	sub := &Subscription{
		ID:          uuid.NewString(),
		EventName:   eventName,
		CallbackURL: callbackURL,
		Watermark:   height,
		CreatedAt:   time.Now().UTC(),
	}

	r.mu.Lock()
	r.subs[sub.ID] = sub
	r.mu.Unlock()

	r.persist(ctx, sub)
	r.logger.Info("subscription created",
		logger.String("subscription_id", sub.ID),
		logger.String("event", eventName),
		logger.String("callback_url", callbackURL))
	return r.copyOf(sub), nil
}

// Delete removes a subscription, NotFound for unknown ids.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()

	if !ok {
		return fault.New(fault.KindNotFound, "unknown subscription %s", id)
	}
	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			r.logger.Warn("failed to delete subscription from store",
				logger.String("subscription_id", id),
				logger.Error(err))
		}
	}
	r.logger.Info("subscription deleted",
		logger.String("subscription_id", id))
	return nil
}

func (r *Registry) Get(id string) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "unknown subscription %s", id)
	}
	return r.copyOf(sub), nil
}

// List returns all subscriptions ordered by creation time.
func (r *Registry) List() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, r.copyOf(sub))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Advance moves a subscription's watermark forward. Regressions are ignored.
func (r *Registry) Advance(ctx context.Context, id string, height uint64) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if !ok || sub.Watermark >= height {
		r.mu.Unlock()
		return
	}
	sub.Watermark = height
	cp := *sub
	r.mu.Unlock()

	r.persist(ctx, &cp)
}

func (r *Registry) persist(ctx context.Context, sub *Subscription) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, sub); err != nil {
		r.logger.Warn("failed to persist subscription",
			logger.String("subscription_id", sub.ID),
			logger.Error(err))
	}
}

func (r *Registry) copyOf(sub *Subscription) *Subscription {
	cp := *sub
	return &cp
}
