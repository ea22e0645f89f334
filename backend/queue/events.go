package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jghoshh/taskvibe/backend/storage/cache"
	"github.com/streadway/amqp"
)

// EventQueueName is the durable RabbitMQ queue events travel through.
const EventQueueName = "taskvibeEvents"

// processedTTL bounds how long an event id is remembered for deduplication.
const processedTTL = 72 * time.Hour

// EventMessage is the JSON body of every event on the queue.
type EventMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Handler does the actual work for one event. A returned error puts the event back on the queue.
type Handler func(ctx context.Context, msg *EventMessage) error

// errMalformed marks bodies that will never decode; they are dropped rather than requeued.
var errMalformed = errors.New("malformed event message")

// eventProcessor wraps a Handler with at-most-once delivery per event id.
type eventProcessor struct {
	cache   cache.CacheInterface
	handler Handler
}

// process handles one message body. A nil error means the message can be acked.
func (p *eventProcessor) process(ctx context.Context, body []byte) error {
	message := &EventMessage{}
	if err := json.Unmarshal(body, message); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	key := "event_" + message.ID
	claimed, err := p.cache.SetIfAbsent(ctx, key, true, processedTTL)
	if err != nil {
		return fmt.Errorf("error checking cache: %w", err)
	}
	if !claimed {
		return nil
	}

	if err := p.handler(ctx, message); err != nil {
		// Release the claim so the redelivery gets another go.
		if delErr := p.cache.Delete(ctx, key); delErr != nil {
			log.Printf("failed to release event %s: %v", message.ID, delErr)
		}
		return err
	}
	return nil
}

// EventProducerFactory creates EventProducer instances.
type EventProducerFactory struct{}

// EventConsumerFactory creates EventConsumer instances sharing one cache and handler.
type EventConsumerFactory struct {
	Cache   cache.CacheInterface
	Handler Handler
}

// EventProducer publishes events on a RabbitMQ channel.
type EventProducer struct {
	channel *amqp.Channel
	queue   *amqp.Queue
}

// EventConsumer consumes events from a RabbitMQ channel.
type EventConsumer struct {
	channel   *amqp.Channel
	queue     *amqp.Queue
	processor *eventProcessor
}

// CreateProducer returns an EventProducer publishing on the given channel and queue.
func (f *EventProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &EventProducer{channel: ch, queue: queue}, nil
}

// CreateConsumer returns an EventConsumer reading from the given channel and queue.
func (f *EventConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	if f.Cache == nil || f.Handler == nil {
		return nil, fmt.Errorf("event consumer needs a cache and a handler")
	}
	return &EventConsumer{
		channel:   ch,
		queue:     queue,
		processor: &eventProcessor{cache: f.Cache, handler: f.Handler},
	}, nil
}

// Publish sends body to the event queue as a persistent JSON message.
func (ep *EventProducer) Publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := ep.channel.Publish(
		"",            // exchange
		ep.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}
	return nil
}

// Consume reads deliveries until ctx is cancelled or the channel closes.
// Handled and duplicate messages are acked, malformed ones are dropped and
// failures are requeued.
func (ec *EventConsumer) Consume(ctx context.Context) error {
	msgs, err := ec.channel.Consume(
		ec.queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			err := ec.processor.process(ctx, d.Body)
			switch {
			case err == nil:
				d.Ack(false)
			case errors.Is(err, errMalformed):
				log.Printf("dropping event: %v", err)
				d.Nack(false, false)
			default:
				log.Printf("failed to handle event: %v", err)
				d.Nack(false, true)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// BuildEventQueue creates the event queue. With a RabbitMQ URL the events go
// through the broker; without one they stay in process.
func BuildEventQueue(rabbitMQURL string, numProducers int, numConsumers int, eventCache cache.CacheInterface, handler Handler) (*Queue, error) {
	if numProducers < 1 {
		numProducers = 1
	}
	if numConsumers < 1 {
		numConsumers = 1
	}

	if rabbitMQURL == "" {
		return newLocalQueue(numProducers, numConsumers, &eventProcessor{cache: eventCache, handler: handler}), nil
	}

	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &EventProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &EventConsumerFactory{Cache: eventCache, Handler: handler}
	}

	return InitQueue(rabbitMQURL, EventQueueName, prodFactories, consFactories)
}

// ProcessEvent serializes msg and publishes it with the next producer in round-robin order.
func ProcessEvent(ctx context.Context, msg *EventMessage, eventQueue *Queue) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event message: %w", err)
	}

	producer, err := eventQueue.nextProducer()
	if err != nil {
		return err
	}

	if err := producer.Publish(ctx, body); err != nil {
		return fmt.Errorf("failed to publish event message: %w", err)
	}
	return nil
}
