package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

// KafkaPublisher writes order lifecycle events through a buffered inbox so
// business operations never block on the broker. Keyed by order id to keep
// per-order event ordering.
type KafkaPublisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, buf int) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start drains the inbox until ctx is cancelled, then flushes what is left.
// The inbox channel is never closed: producers sharing the same cancellation
// may still publish while the drain winds down.
func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						if err := p.w.Close(); err != nil {
							log.Warn().Err(err).Msg("kafka writer close failed")
						}
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *KafkaPublisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Warn().Err(err).Str("key", string(m.Key)).Msg("kafka publish failed")
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) {
	value, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("event_type", event.EventType).Msg("event marshal failed")
		return
	}
	m := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(event.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(event.EventVersion))},
		},
	}
	select {
	case p.inbox <- m:
	default:
		// Dropping beats blocking an order operation on a slow broker.
		log.Warn().Str("event_type", event.EventType).Int64("order_id", event.OrderID).Msg("event inbox full, dropping")
	}
}

// WaitClosed blocks until the drain goroutine has flushed and exited.
func (p *KafkaPublisher) WaitClosed() { <-p.closeCh }
