package outbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/repository"
)

const defaultBatchSize = 100

// Subscriber consumes delivered events. An error makes the relay stop the
// current batch and retry the event on the next poll, preserving id order.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, event models.OutboxEvent) error
}

// Relay polls the outbox and fans events out to subscribers. Delivery is
// at-least-once: an event is marked delivered only after every subscriber
// handled it, so subscribers must tolerate replays.
type Relay struct {
	repo        repository.OutboxRepository
	subscribers []Subscriber
	interval    time.Duration
	batchSize   int
}

func NewRelay(repo repository.OutboxRepository, interval time.Duration, subscribers ...Subscriber) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Relay{
		repo:        repo,
		subscribers: subscribers,
		interval:    interval,
		batchSize:   defaultBatchSize,
	}
}

// Run polls until ctx is canceled. One drain pass happens immediately so
// events queued before startup are not held for a full interval.
func (r *Relay) Run(ctx context.Context) {
	log.Printf("INFO: outbox relay started, interval %s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("INFO: outbox relay stopped")
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain delivers pending events in id order. It stops at the first event a
// subscriber rejects; later events wait so per-aggregate ordering survives
// the retry.
func (r *Relay) Drain(ctx context.Context) {
	events, err := r.repo.ListUndelivered(ctx, r.batchSize)
	if err != nil {
		log.Printf("ERROR: outbox relay: list undelivered: %v", err)
		return
	}

	var delivered []int64
	for _, event := range events {
		if err := r.deliver(ctx, event); err != nil {
			log.Printf("WARNING: outbox relay: %s id %d held for retry: %v", event.EventType, event.ID, err)
			break
		}
		delivered = append(delivered, event.ID)
	}

	if len(delivered) == 0 {
		return
	}
	if err := r.repo.MarkDelivered(ctx, delivered); err != nil {
		// Events will be redelivered; subscribers see them twice.
		log.Printf("ERROR: outbox relay: mark delivered: %v", err)
	}
}

func (r *Relay) deliver(ctx context.Context, event models.OutboxEvent) error {
	for _, sub := range r.subscribers {
		if err := sub.Handle(ctx, event); err != nil {
			return fmt.Errorf("%s: %w", sub.Name(), err)
		}
	}
	return nil
}
