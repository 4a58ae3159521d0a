// Package kafkarelay mirrors in-process domain events onto a Kafka topic.
package kafkarelay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds a producer that waits for all in-sync replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Relay forwards events keyed by aggregate id so one order's events stay on one partition.
type Relay struct {
	producer Producer
	log      observability.Logger
	prop     propagation.TraceContext
	now      func() time.Time
}

func NewRelay(producer Producer, logger observability.Logger) *Relay {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Relay{
		producer: producer,
		log:      logger.With(observability.F("component", "kafka_relay")),
		now:      time.Now,
	}
}

// Register subscribes the relay to every named event.
func (r *Relay) Register(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, r.Handle)
	}
}

type envelope struct {
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.EventName(), err)
	}
	value, err := json.Marshal(envelope{
		Type:        e.EventName(),
		AggregateID: e.AggregateID(),
		OccurredAt:  r.now().UTC(),
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(e.EventName())}}
	carrier := propagation.MapCarrier{}
	r.prop.Inject(ctx, carrier)
	if tp := carrier.Get("traceparent"); tp != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(tp)})
	}

	msg := kafka.Message{
		Key:     []byte(e.AggregateID()),
		Value:   value,
		Headers: headers,
	}
	logger := logctx.FromOr(ctx, r.log)
	if err := r.producer.WriteMessages(ctx, msg); err != nil {
		logger.Error("kafka_relay_failed", observability.F("event", e.EventName()), observability.F("error", err))
		return err
	}
	logger.Debug("kafka_relayed", observability.F("event", e.EventName()))
	return nil
}
