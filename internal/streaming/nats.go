package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"intelgraph-lab/internal/config"
	"intelgraph-lab/pkg/logger"
)

// NATSPublisher handles publishing analysis events to NATS JetStream
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	config config.NATSConfig
	logger *logger.Logger

	mu        sync.RWMutex
	connected bool
}

// NewNATSPublisher creates a new NATS publisher
func NewNATSPublisher(ctx context.Context, cfg config.NATSConfig, log *logger.Logger) (*NATSPublisher, error) {
	log = log.WithComponent("nats")

	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "INTELGRAPH_EVENTS"
	}

	log.Info().Str("url", cfg.URL).Str("stream", cfg.StreamName).Msg("connecting to NATS")

	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Intelligence correlation analysis events",
		Subjects:    []string{"intel.>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     100000,
		MaxBytes:    100 * 1024 * 1024,
		Discard:     jetstream.DiscardOld,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	log.Info().Str("stream", stream.CachedInfo().Config.Name).Msg("NATS stream ready")

	return &NATSPublisher{
		conn:      conn,
		js:        js,
		stream:    stream,
		config:    cfg,
		logger:    log,
		connected: true,
	}, nil
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		p.conn.Close()
		p.connected = false
	}
}

// IsConnected returns whether NATS is connected
func (p *NATSPublisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.conn.IsConnected()
}

// PublishEvent publishes an analysis event
func (p *NATSPublisher) PublishEvent(ctx context.Context, event *AnalysisEvent) error {
	if !p.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}

	subject := p.getSubject(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_type", string(event.Type)).
		Str("investigation_id", event.InvestigationID).
		Msg("published analysis event")

	return nil
}

// getSubject returns the NATS subject for an event.
// Subject hierarchy: intel.<event_type>.<qualifier>
// Example: intel.threat_escalated.critical
func (p *NATSPublisher) getSubject(event *AnalysisEvent) string {
	qualifier := "all"
	if event.Type == EventTypeThreatEscalated && event.ThreatLevel != "" {
		qualifier = string(event.ThreatLevel)
	}
	return fmt.Sprintf("intel.%s.%s", event.Type, qualifier)
}

// Subscribe creates a filtered subscription to analysis events
func (p *NATSPublisher) Subscribe(ctx context.Context, sub *Subscription) (<-chan *AnalysisEvent, error) {
	if !p.IsConnected() {
		return nil, fmt.Errorf("NATS not connected")
	}

	consumerCfg := jetstream.ConsumerConfig{
		Durable:       "", // Ephemeral consumer
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    3,
		FilterSubject: "intel.>",
	}

	consumer, err := p.stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	eventCh := make(chan *AnalysisEvent, 100)

	go func() {
		defer close(eventCh)

		msgs, err := consumer.Messages()
		if err != nil {
			p.logger.Error().Err(err).Msg("failed to get messages iterator")
			return
		}
		defer msgs.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := msgs.Next()
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					p.logger.Warn().Err(err).Msg("error getting next message")
					continue
				}

				var event AnalysisEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					p.logger.Warn().Err(err).Msg("failed to unmarshal event")
					msg.Nak()
					continue
				}

				if sub == nil || sub.Matches(&event) {
					select {
					case eventCh <- &event:
						msg.Ack()
					case <-ctx.Done():
						return
					}
				} else {
					msg.Ack() // Acknowledge but don't send
				}
			}
		}
	}()

	return eventCh, nil
}
