package procure

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the procurement service. Payloads carry only
// public fields; bid amounts and scores never appear here in cleartext.
const (
	EventSupplierRegistered = "supplier_registered"
	EventSupplierQualified  = "supplier_qualified"
	EventTenderCreated      = "tender_created"
	EventBidSubmitted       = "bid_submitted"
	EventTenderClosed       = "tender_closed"
	EventTenderCancelled    = "tender_cancelled"
	EventTenderAwarded      = "tender_awarded"
)

// Event is the published envelope.
type Event struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
}

// Publisher fans events out to registered subscribers and logs each one.
type Publisher struct {
	source string

	mu   sync.RWMutex
	subs []func(Event)
}

// NewPublisher creates a publisher; source names the emitting component.
func NewPublisher(source string) *Publisher {
	return &Publisher{source: source}
}

// Subscribe registers a synchronous subscriber. Subscribers must not block.
func (p *Publisher) Subscribe(fn func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Publish emits an event to the log and all subscribers.
func (p *Publisher) Publish(ctx context.Context, eventType string, data map[string]any) {
	event := Event{
		EventID:   "evt_" + uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    p.source,
		Data:      data,
	}

	slog.InfoContext(ctx, "event_published",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"source", event.Source,
	)

	p.mu.RLock()
	subs := p.subs
	p.mu.RUnlock()
	for _, fn := range subs {
		fn(event)
	}
}
