package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/streadway/amqp"
)

// Producer publishes a message body onto the queue.
type Producer interface {
	Publish(ctx context.Context, body []byte) error
}

// Consumer reads messages off the queue until ctx is cancelled.
// Consume blocks for the lifetime of the consumer.
type Consumer interface {
	Consume(ctx context.Context) error
}

// ProducerFactory creates producers bound to a RabbitMQ channel and queue.
type ProducerFactory interface {
	CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error)
}

// ConsumerFactory creates consumers bound to a RabbitMQ channel and queue.
type ConsumerFactory interface {
	CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error)
}

// Queue holds slices of Producers and Consumers which can be used to send and consume messages.
type Queue struct {
	Producers []Producer
	Consumers []Consumer

	next  atomic.Uint64
	close func() error
}

// connect establishes a connection to RabbitMQ and opens a new channel in confirm mode.
// An unexpected closure of the connection is logged.
func connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	if err = ch.Confirm(false); err != nil {
		conn.Close()
		return nil, nil, err
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err := <-notifyClose; err != nil {
			log.Printf("RabbitMQ connection closed: %v", err)
		}
	}()

	return conn, ch, nil
}

// InitQueue connects to RabbitMQ, declares a durable queue named queueName and
// builds one producer or consumer per factory on top of it.
func InitQueue(url string, queueName string, prodFactories []ProducerFactory, consFactories []ConsumerFactory) (*Queue, error) {
	conn, ch, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to RabbitMQ: %w", err)
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error declaring queue: %w", err)
	}

	q := &Queue{close: conn.Close}

	for _, prodFactory := range prodFactories {
		producer, err := prodFactory.CreateProducer(conn, ch, &queue)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("error creating producer: %w", err)
		}
		q.Producers = append(q.Producers, producer)
	}

	for _, consFactory := range consFactories {
		consumer, err := consFactory.CreateConsumer(conn, ch, &queue)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("error creating consumer: %w", err)
		}
		q.Consumers = append(q.Consumers, consumer)
	}

	return q, nil
}

// StartConsumers starts every consumer in its own goroutine. The consumers run until
// ctx is cancelled; the returned WaitGroup is done once all of them have returned.
func (q *Queue) StartConsumers(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup

	for _, consumer := range q.Consumers {
		wg.Add(1)

		go func(c Consumer) {
			defer wg.Done()

			if err := c.Consume(ctx); err != nil {
				log.Printf("Error running consumer: %v", err)
			}
		}(consumer)
	}

	return &wg
}

// nextProducer picks producers round-robin.
func (q *Queue) nextProducer() (Producer, error) {
	if len(q.Producers) == 0 {
		return nil, fmt.Errorf("no producers available")
	}
	n := q.next.Add(1) - 1
	return q.Producers[n%uint64(len(q.Producers))], nil
}

// Close releases the underlying connection, if any.
func (q *Queue) Close() error {
	if q.close == nil {
		return nil
	}
	return q.close()
}
