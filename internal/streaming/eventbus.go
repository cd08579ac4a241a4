package streaming

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

// EventBus distributes analysis events to subscribers. NATS carries events
// across processes when enabled; local subscribers and the WebSocket hub are
// always served.
type EventBus struct {
	nats   *NATSPublisher
	wsHub  *WebSocketHub
	logger *logger.Logger

	mu          sync.RWMutex
	subscribers map[string]chan *AnalysisEvent
	nextID      int
}

// NewEventBus creates a new event bus
func NewEventBus(nats *NATSPublisher, wsHub *WebSocketHub, log *logger.Logger) *EventBus {
	return &EventBus{
		nats:        nats,
		wsHub:       wsHub,
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[string]chan *AnalysisEvent),
	}
}

// Publish publishes an analysis event to all subscribers
func (eb *EventBus) Publish(ctx context.Context, event *AnalysisEvent) error {
	if eb.nats != nil && eb.nats.IsConnected() {
		if err := eb.nats.PublishEvent(ctx, event); err != nil {
			eb.logger.Warn().Err(err).Msg("failed to publish to NATS, using local broadcast only")
		}
	}

	if eb.wsHub != nil {
		eb.wsHub.BroadcastEvent(event)
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}

	return nil
}

// PublishReport emits the events derived from a completed report: one
// report_ready plus one threat_escalated per high or critical assessment.
func (eb *EventBus) PublishReport(ctx context.Context, report *models.IntelligenceReport) error {
	if err := eb.Publish(ctx, NewReportReadyEvent(report)); err != nil {
		return err
	}
	for _, assessment := range report.Assessments {
		if assessment.ThreatLevel != models.ThreatLevelHigh && assessment.ThreatLevel != models.ThreatLevelCritical {
			continue
		}
		if err := eb.Publish(ctx, NewThreatEscalatedEvent(report.InvestigationID, assessment)); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe creates a new subscription and returns a channel for events
func (eb *EventBus) Subscribe(ctx context.Context, sub *Subscription) (<-chan *AnalysisEvent, func()) {
	eb.mu.Lock()
	eb.nextID++
	id := fmt.Sprintf("sub-%d", eb.nextID)
	ch := make(chan *AnalysisEvent, 100)
	eb.subscribers[id] = ch
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", id).Msg("new subscriber")

	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(ch)
			delete(eb.subscribers, id)
			eb.logger.Debug().Str("subscriber_id", id).Msg("subscriber removed")
		}
	}

	// If NATS is available, also subscribe there for distributed events
	if eb.nats != nil && eb.nats.IsConnected() {
		natsCh, err := eb.nats.Subscribe(ctx, sub)
		if err == nil {
			go func() {
				for event := range natsCh {
					select {
					case ch <- event:
					case <-ctx.Done():
						return
					}
				}
			}()
		}
	}

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close closes the event bus
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, ch := range eb.subscribers {
		close(ch)
		delete(eb.subscribers, id)
	}

	if eb.nats != nil {
		eb.nats.Close()
	}
}

// PublishIngest is a convenience for the ingest path.
func (eb *EventBus) PublishIngest(ctx context.Context, investigationID uuid.UUID, count int) error {
	return eb.Publish(ctx, NewRecordsIngestedEvent(investigationID, count))
}
