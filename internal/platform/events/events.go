// Package events carries domain events from the database outbox to Kafka.
package events

import (
	"context"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

const (
	TypePayrollApproved  = "payroll.period.approved"
	TypePayrollPaid      = "payroll.period.paid"
	TypeLeaveDecided     = "leave.application.decided"
	TypePayslipGenerated = "payroll.payslip.generated"
)

type Event struct {
	ID        string
	Topic     string
	Key       string
	Type      string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Topic builds a versioned topic name such as schoolerp.payroll.period.approved.v1.
func Topic(prefix, eventType string) string {
	if prefix == "" {
		return eventType + ".v1"
	}
	return prefix + "." + eventType + ".v1"
}

type KafkaPublisher struct {
	writer *kafkago.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: event.Topic,
		Key:   []byte(event.Key),
		Value: event.Payload,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// MemoryPublisher keeps published events in memory. It backs deployments
// without Kafka and tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
