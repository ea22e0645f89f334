package queue

import (
	"context"
	"errors"
	"log"
)

const localBufferSize = 256

// localProducer and localConsumer share a buffered channel instead of a broker.
type localProducer struct {
	bus chan []byte
}

type localConsumer struct {
	bus       chan []byte
	processor *eventProcessor
}

func newLocalQueue(numProducers, numConsumers int, processor *eventProcessor) *Queue {
	bus := make(chan []byte, localBufferSize)
	q := &Queue{}
	for i := 0; i < numProducers; i++ {
		q.Producers = append(q.Producers, &localProducer{bus: bus})
	}
	for i := 0; i < numConsumers; i++ {
		q.Consumers = append(q.Consumers, &localConsumer{bus: bus, processor: processor})
	}
	return q
}

func (p *localProducer) Publish(ctx context.Context, body []byte) error {
	select {
	case p.bus <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *localConsumer) Consume(ctx context.Context) error {
	for {
		select {
		case body := <-c.bus:
			err := c.processor.process(ctx, body)
			switch {
			case err == nil:
			case errors.Is(err, errMalformed):
				log.Printf("dropping event: %v", err)
			default:
				log.Printf("failed to handle event: %v", err)
				select {
				case c.bus <- body:
				default:
					log.Printf("event queue full, dropping retry")
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}
