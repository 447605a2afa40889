package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

var errDeliveriesClosed = errors.New("rabbitmq: канал доставок закрыт")

// RabbitConsumptionQueue реализует очередь уведомлений через AMQP 0.9.1.
// Очередь durable, сообщения persistent, prefetch 1.
type RabbitConsumptionQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.ConsumptionQueue = (*RabbitConsumptionQueue)(nil)

// NewRabbitConsumptionQueue подключается к брокеру и объявляет очередь.
func NewRabbitConsumptionQueue(amqpURL, queue string) (*RabbitConsumptionQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitConsumptionQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует уведомление в очередь через default exchange.
func (q *RabbitConsumptionQueue) Enqueue(ctx context.Context, msg domain.ConsumptionLogged) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    start,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Receive ждёт следующую доставку. Нечитаемое сообщение отбрасывается без повторной доставки.
func (q *RabbitConsumptionQueue) Receive(ctx context.Context) (domain.ConsumptionLogged, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.ConsumptionLogged{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.ConsumptionLogged{}, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.ConsumptionLogged{}, nil, errDeliveriesClosed
		}
		var msg domain.ConsumptionLogged
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			_ = d.Nack(false, false)
			return domain.ConsumptionLogged{}, nil, fmt.Errorf("decode message: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return msg, ack, nil
	}
}

func (q *RabbitConsumptionQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	start := time.Now()
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	metrics.ObserveNetworkRequest("rabbitmq", "consume", q.queue, start, err)
	if err != nil {
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitConsumptionQueue) Close() error {
	if err := q.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
