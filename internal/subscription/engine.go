package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/logger"
)

// Delivery is the JSON body POSTed to a callback, one request per event.
type Delivery struct {
	SubscriptionID string        `json:"subscription_id"`
	Event          DeliveryEvent `json:"event"`
}

type DeliveryEvent struct {
	Name        string            `json:"name"`
	ServiceID   string            `json:"service_id,omitempty"`
	Payload     map[string]string `json:"payload,omitempty"`
	BlockNumber uint64            `json:"block_number"`
	TxHash      common.Hash       `json:"tx_hash"`
}

// EngineOptions bound the scan and delivery loops.
type EngineOptions struct {
	// ScanInterval is the pause between ledger scans.
	ScanInterval time.Duration
	// DeliveryTimeout caps a single callback POST.
	DeliveryTimeout time.Duration
	// DeliveryRetries is the number of extra attempts per event.
	DeliveryRetries int
}

// Engine scans the ledger for new events and pushes them to subscribed
// callbacks. One loop per process; each subscription advances its own
// watermark after its cycle, delivered or not, so events are pushed
// at most once.
type Engine struct {
	reader   ledger.Reader
	registry *Registry
	client   *http.Client
	logger   logger.Logger
	opts     EngineOptions
	stopCh   chan struct{}
}

func NewEngine(reader ledger.Reader, registry *Registry, log logger.Logger, opts EngineOptions) *Engine {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = time.Second
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}
	return &Engine{
		reader:   reader,
		registry: registry,
		client:   &http.Client{Timeout: opts.DeliveryTimeout},
		logger:   log,
		opts:     opts,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic scan loop.
func (e *Engine) Start(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.ScanInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Scan(ctx)
			case <-e.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop stops the scan loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Scan runs one delivery cycle: for every subscription, push matching
// events from blocks in (watermark, height] and advance the watermark.
// Delivery failures are logged and skipped, never retried in a later cycle.
func (e *Engine) Scan(ctx context.Context) {
	height, err := e.reader.Height(ctx)
	if err != nil {
		e.logger.Warn("subscription scan skipped, ledger unreachable",
			logger.Error(err))
		return
	}

	for _, sub := range e.registry.List() {
		if sub.Watermark >= height {
			continue
		}
		e.scanSubscription(ctx, sub, height)
		e.registry.Advance(ctx, sub.ID, height)
	}
}

func (e *Engine) scanSubscription(ctx context.Context, sub *Subscription, height uint64) {
	for number := sub.Watermark + 1; number <= height; number++ {
		block, err := e.reader.Block(ctx, number)
		if err != nil {
			e.logger.Warn("failed to read block during scan",
				logger.String("subscription_id", sub.ID),
				logger.Uint64("block", number),
				logger.Error(err))
			continue
		}
		for _, ev := range block.Events {
			if ev.Name != sub.EventName {
				continue
			}
			e.deliver(ctx, sub, Delivery{
				SubscriptionID: sub.ID,
				Event: DeliveryEvent{
					Name:        ev.Name,
					ServiceID:   ev.Service,
					Payload:     ev.Attrs,
					BlockNumber: ev.BlockNumber,
					TxHash:      ev.TxHash,
				},
			})
		}
	}
}

func (e *Engine) deliver(ctx context.Context, sub *Subscription, d Delivery) {
	body, err := json.Marshal(d)
	if err != nil {
		e.logger.Error("failed to encode delivery",
			logger.String("subscription_id", sub.ID),
			logger.Error(err))
		return
	}

	var lastErr error
	for attempt := 0; attempt <= e.opts.DeliveryRetries; attempt++ {
		if err := e.post(ctx, sub.CallbackURL, body); err != nil {
			lastErr = err
			continue
		}
		e.logger.Debug("event delivered",
			logger.String("subscription_id", sub.ID),
			logger.String("event", d.Event.Name),
			logger.Uint64("block", d.Event.BlockNumber))
		return
	}
	e.logger.Warn("event delivery failed, dropping",
		logger.String("subscription_id", sub.ID),
		logger.String("event", d.Event.Name),
		logger.String("callback_url", sub.CallbackURL),
		logger.Error(lastErr))
}

func (e *Engine) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback answered %d", resp.StatusCode)
	}
	return nil
}
