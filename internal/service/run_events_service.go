package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jantenpas/llm-eval-studio/internal/dto"
	"github.com/jantenpas/llm-eval-studio/internal/observability"
)

const runEventBufferSize = 16

// RunEventsService broadcasts terminal run statuses to SSE subscribers and
// fans them out to sibling nodes via redis and NATS.
type RunEventsService interface {
	Publish(ctx context.Context, event dto.RunEvent)
	Subscribe() (<-chan dto.RunEvent, func())
	Start(ctx context.Context)
}

type runEventsService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	broker       *runEventBroker
	nodeID       string
}

type runEventEnvelope struct {
	Source string       `json:"source"`
	Event  dto.RunEvent `json:"event"`
	SentAt time.Time    `json:"sent_at"`
}

type runEventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.RunEvent]struct{}
}

// NewRunEventsService constructs the run event fan-out. Either broker
// connection may be nil; with both absent events still reach subscribers on
// this node.
func NewRunEventsService(redisClient *redis.Client, natsConn *nats.Conn, subject string, logger zerolog.Logger) RunEventsService {
	channel := ""
	if subject != "" {
		channel = strings.ReplaceAll(subject, ".", ":")
	}

	return &runEventsService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "run_events_service").Logger(),
		tracer:       otel.Tracer("github.com/jantenpas/llm-eval-studio/internal/service/runevents"),
		broker: &runEventBroker{
			subscribers: make(map[chan dto.RunEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *runEventsService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Publish delivers the event to local subscribers and forwards it to the
// configured brokers. Broker failures are logged, not returned, so a flaky
// broker never blocks run completion.
func (s *runEventsService) Publish(ctx context.Context, event dto.RunEvent) {
	attrs := []attribute.KeyValue{
		attribute.String("run.id", event.RunID),
		attribute.String("run.status", event.Status),
	}

	spanCtx, span := s.tracer.Start(ctx, "runs.publish_event", trace.WithAttributes(attrs...))
	defer span.End()

	s.broker.broadcast(event)

	if err := s.forward(spanCtx, event); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("run_id", event.RunID).Msg("failed to publish run event to broker")
	}
}

func (s *runEventsService) Subscribe() (<-chan dto.RunEvent, func()) {
	channel := make(chan dto.RunEvent, runEventBufferSize)

	s.broker.subscribe(channel)
	observability.SSEClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(channel)
		observability.SSEClientsActive().Dec()
	}

	return channel, cleanup
}

func (s *runEventsService) forward(ctx context.Context, event dto.RunEvent) error {
	envelope := runEventEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *runEventsService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("run event redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *runEventsService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "evalstudio-run-events", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats run event subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain run event nats subscription")
		}
	}()
}

func (s *runEventsService) handleEvent(payload []byte) {
	var envelope runEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid run event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}
	if envelope.Event.RunID == "" {
		s.logger.Warn().Msg("run event without run id dropped")
		return
	}

	s.broker.broadcast(envelope.Event)
}

func (b *runEventBroker) subscribe(ch chan dto.RunEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[ch] = struct{}{}
}

func (b *runEventBroker) unsubscribe(ch chan dto.RunEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// broadcast never blocks; a subscriber that cannot keep up misses events
// rather than stalling the rest.
func (b *runEventBroker) broadcast(event dto.RunEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
