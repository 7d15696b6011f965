// internal/queue/queue.go
package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// DispatchQueue is the queue all batch jobs travel through. A single
// consumer drains it, which is what serializes batches against the store.
const DispatchQueue = "campaign_dispatch"

const (
	KindLaunch   = "launch"
	KindFollowup = "followup"
)

// DispatchJob is one queued batch request.
type DispatchJob struct {
	Kind             string `json:"kind"` // launch, followup
	Campaign         string `json:"campaign"`
	Sender           string `json:"sender,omitempty"`
	SubjectTemplate  string `json:"subject_template,omitempty"`
	BodyTemplate     string `json:"body_template,omitempty"`
	FollowupsPlanned int    `json:"followups_planned,omitempty"`
	IntervalDays     int    `json:"interval_days,omitempty"`
	RecipientsFile   string `json:"recipients_file,omitempty"`
	Force            bool   `json:"force,omitempty"`
}

// DecodeDispatchJob accepts either an in-process DispatchJob or raw JSON
// from the broker.
func DecodeDispatchJob(payload any) (DispatchJob, error) {
	switch v := payload.(type) {
	case DispatchJob:
		return v, nil
	case *DispatchJob:
		return *v, nil
	case []byte:
		var job DispatchJob
		if err := json.Unmarshal(v, &job); err != nil {
			return DispatchJob{}, fmt.Errorf("invalid dispatch job: %w", err)
		}
		return job, nil
	default:
		return DispatchJob{}, fmt.Errorf("invalid dispatch job payload type %T", payload)
	}
}

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue runs every job on one goroutine, so two batches can never
// overlap. Used when no broker is configured, and in tests.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	jobs     chan queuedJob
	once     sync.Once
}

type queuedJob struct {
	topic   string
	payload any
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
		jobs:     make(chan queuedJob, 100),
	}
}

// Publish sends a message to the topic's subscribers.
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	n := len(q.handlers[topic])
	q.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}
	q.once.Do(func() { go q.run() })
	q.jobs <- queuedJob{topic: topic, payload: payload}
	return nil
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

func (q *InMemoryQueue) run() {
	for j := range q.jobs {
		q.mu.Lock()
		handlers := q.handlers[j.topic]
		q.mu.Unlock()
		for _, h := range handlers {
			if err := h(j.payload); err != nil {
				log.Printf("⚠️ job on %s failed: %v", j.topic, err)
			}
		}
	}
}

// AMQPQueue publishes and consumes jobs over RabbitMQ.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQP(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

// Publish routes a JSON-encoded payload to the named durable queue.
func (q *AMQPQueue) Publish(topic string, payload any) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		declared.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Subscribe consumes the topic sequentially on one goroutine, delivering the
// raw body to the handler. Failed jobs are logged and acked; batch jobs are
// not retried automatically (a relaunch would double-send).
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}
	msgs, err := q.ch.Consume(
		declared.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}
	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				log.Printf("⚠️ job on %s failed: %v", topic, err)
			}
			d.Ack(false)
		}
	}()
	return nil
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

var _ Queue = (*InMemoryQueue)(nil)
var _ Queue = (*AMQPQueue)(nil)
