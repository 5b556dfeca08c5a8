package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/xhad/scholar/internal/models"
)

// Message is one queued ingestion job.
type Message struct {
	ID   string
	Body []byte
}

// NewIngestMessage wraps an ingest request as a queue message.
func NewIngestMessage(req models.IngestRequest) (Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode ingest request: %v", err)
	}
	return Message{ID: uuid.NewString(), Body: body}, nil
}

// Handler processes one message. A returned error requests redelivery.
type Handler func(ctx context.Context, msg Message) error

// Dispatcher runs a handler over message batches and reports which messages
// failed, so only those are redelivered instead of the whole batch.
type Dispatcher struct {
	handler Handler
}

func NewDispatcher(handler Handler) *Dispatcher {
	return &Dispatcher{handler: handler}
}

// HandleBatch processes every message even when earlier ones fail, and
// returns the ids of the failures.
func (d *Dispatcher) HandleBatch(ctx context.Context, msgs []Message) []string {
	var failed []string
	for _, msg := range msgs {
		if err := d.handler(ctx, msg); err != nil {
			log.Printf("message %s failed: %v", msg.ID, err)
			failed = append(failed, msg.ID)
		}
	}
	return failed
}

type QueueConfig struct {
	BufferSize    int
	MaxDeliveries int
	BatchSize     int
	// OnDeadLetter receives messages that exhausted their deliveries.
	OnDeadLetter func(Message)
}

// InProcessQueue is a channel-backed job queue with bounded redelivery. It
// stands in for a managed queue in local runs; the Dispatcher contract is the
// same either way.
type InProcessQueue struct {
	config     QueueConfig
	dispatcher *Dispatcher
	messages   chan Message

	mu         sync.Mutex
	deliveries map[string]int
}

func NewInProcessQueue(config QueueConfig, dispatcher *Dispatcher) *InProcessQueue {
	if config.BufferSize <= 0 {
		config.BufferSize = 128
	}
	if config.MaxDeliveries <= 0 {
		config.MaxDeliveries = 3
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	return &InProcessQueue{
		config:     config,
		dispatcher: dispatcher,
		messages:   make(chan Message, config.BufferSize),
		deliveries: make(map[string]int),
	}
}

// Enqueue adds a message, failing when the queue is full rather than blocking
// the producer.
func (q *InProcessQueue) Enqueue(msg Message) error {
	select {
	case q.messages <- msg:
		return nil
	default:
		return fmt.Errorf("queue full, dropping message %s", msg.ID)
	}
}

// Run delivers messages in batches until the context is cancelled. Failed
// messages are requeued until MaxDeliveries, then dead-lettered.
func (q *InProcessQueue) Run(ctx context.Context) {
	for {
		batch := q.nextBatch(ctx)
		if batch == nil {
			return
		}

		failed := q.dispatcher.HandleBatch(ctx, batch)
		failedSet := make(map[string]bool, len(failed))
		for _, id := range failed {
			failedSet[id] = true
		}

		for _, msg := range batch {
			if !failedSet[msg.ID] {
				q.forget(msg.ID)
				continue
			}
			q.redeliver(msg)
		}
	}
}

// nextBatch blocks for the first message, then drains up to BatchSize without
// waiting. Returns nil when the context ends.
func (q *InProcessQueue) nextBatch(ctx context.Context) []Message {
	var batch []Message
	select {
	case <-ctx.Done():
		return nil
	case msg := <-q.messages:
		batch = append(batch, msg)
	}

	for len(batch) < q.config.BatchSize {
		select {
		case msg := <-q.messages:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func (q *InProcessQueue) redeliver(msg Message) {
	q.mu.Lock()
	q.deliveries[msg.ID]++
	count := q.deliveries[msg.ID]
	q.mu.Unlock()

	if count >= q.config.MaxDeliveries {
		q.forget(msg.ID)
		log.Printf("message %s exhausted %d deliveries, dead-lettering", msg.ID, count)
		if q.config.OnDeadLetter != nil {
			q.config.OnDeadLetter(msg)
		}
		return
	}

	if err := q.Enqueue(msg); err != nil {
		log.Printf("failed to requeue message %s: %v", msg.ID, err)
	}
}

func (q *InProcessQueue) forget(id string) {
	q.mu.Lock()
	delete(q.deliveries, id)
	q.mu.Unlock()
}
