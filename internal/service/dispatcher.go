package service

import (
	"context"
	"sync"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// DispatcherConfig sizes the internal work queue.
type DispatcherConfig struct {
	BufferSize      int
	Workers         int
	DeliveryTimeout time.Duration
}

// DefaultDispatcherConfig returns reasonable defaults for a single node.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize:      256,
		Workers:         4,
		DeliveryTimeout: 10 * time.Second,
	}
}

// DispatcherImpl decouples outbound notification delivery from queue state
// transitions via an internal work queue. Publish never blocks: a slow or
// unavailable channel can only cost notifications, never stall matching.
// Delivery failures are recorded to history as NOTIFICATION_FAILED; retry
// policy belongs to the channel implementation, not the core.
type DispatcherImpl struct {
	notifier    ports.Notifier
	historyRepo ports.HistoryRepository
	cfg         DispatcherConfig
	events      chan ports.NotificationEvent
	log         zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewDispatcher creates the dispatcher and starts its workers. notifier may
// be nil, in which case events are drained and dropped (delivery disabled).
func NewDispatcher(notifier ports.Notifier, historyRepo ports.HistoryRepository, cfg DispatcherConfig, log zerolog.Logger) *DispatcherImpl {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultDispatcherConfig().BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultDispatcherConfig().Workers
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDispatcherConfig().DeliveryTimeout
	}

	d := &DispatcherImpl{
		notifier:    notifier,
		historyRepo: historyRepo,
		cfg:         cfg,
		events:      make(chan ports.NotificationEvent, cfg.BufferSize),
		log:         log,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// Publish enqueues an event for asynchronous delivery. When the buffer is
// full, or the dispatcher has been shut down, the event is dropped and
// recorded as a failed notification instead of blocking (or panicking on a
// closed channel).
func (d *DispatcherImpl) Publish(event ports.NotificationEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().
			Str("type", string(event.Type)).
			Str("recipient", event.RecipientRef).
			Msg("dispatcher stopped, dropping event")
		d.recordFailure(event, "dispatcher stopped")
		return
	}

	select {
	case d.events <- event:
	default:
		d.log.Warn().
			Str("type", string(event.Type)).
			Str("recipient", event.RecipientRef).
			Msg("notification buffer full, dropping event")
		d.recordFailure(event, "dispatch buffer full")
	}
}

// Shutdown stops accepting events and waits for in-flight deliveries, up to
// the context deadline.
func (d *DispatcherImpl) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.events)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DispatcherImpl) worker() {
	defer d.wg.Done()
	for event := range d.events {
		d.deliver(event)
	}
}

func (d *DispatcherImpl) deliver(event ports.NotificationEvent) {
	if d.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, event); err != nil {
		d.log.Warn().
			Err(err).
			Str("type", string(event.Type)).
			Str("channel", d.notifier.Name()).
			Str("recipient", event.RecipientRef).
			Msg("notification delivery failed")
		d.recordFailure(event, err.Error())
		return
	}

	d.log.Debug().
		Str("type", string(event.Type)).
		Str("channel", d.notifier.Name()).
		Msg("notification delivered")
}

func (d *DispatcherImpl) recordFailure(event ports.NotificationEvent, cause string) {
	payload := map[string]any{
		"type":      event.Type,
		"recipient": event.RecipientRef,
		"cause":     cause,
	}

	var entry *domain.HistoryEntry
	switch {
	case event.Match != nil:
		entry = domain.NewMatchHistory(event.Match.ID, domain.EventNotificationFailed, payload)
	case event.Item != nil:
		entry = domain.NewItemHistory(event.Item.ID, domain.EventNotificationFailed, payload)
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.historyRepo.Append(ctx, nil, entry); err != nil {
		d.log.Error().Err(err).Msg("failed to record notification failure")
	}
}
