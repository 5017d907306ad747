// Package event publishes result notifications to RabbitMQ.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pavelanni/examscore/internal/model"
)

const (
	// DefaultExchange is the topic exchange results are published on.
	DefaultExchange = "examscore.events"
	// ResultCreated is the routing key of a new result.
	ResultCreated = "result.created"
)

// ResultEvent is the body of a result.created message. Recorded answers are
// not included.
type ResultEvent struct {
	EventType       string    `json:"eventType"`
	ResultID        string    `json:"resultId"`
	StudentID       string    `json:"studentId"`
	ExamID          string    `json:"examId"`
	TotalScore      float64   `json:"totalScore"`
	PercentageScore float64   `json:"percentageScore"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewResultEvent builds the event for a stored result.
func NewResultEvent(r model.ExamResult) ResultEvent {
	return ResultEvent{
		EventType:       ResultCreated,
		ResultID:        r.ID,
		StudentID:       r.StudentID,
		ExamID:          r.ExamID,
		TotalScore:      r.TotalScore,
		PercentageScore: r.PercentageScore,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		CreatedAt:       r.CreatedAt,
	}
}

// Publisher sends events on a durable topic exchange.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewPublisher dials url and declares the exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	slog.Info("event publisher ready", "exchange", exchange)
	return &Publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// ResultCreated publishes a result.created event for r.
func (p *Publisher) ResultCreated(ctx context.Context, r model.ExamResult) error {
	msg, err := newPublishing(NewResultEvent(r))
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, ResultCreated, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ResultCreated, err)
	}
	slog.Debug("published event", "type", ResultCreated, "result_id", r.ID)
	return nil
}

func newPublishing(ev ResultEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.CreatedAt,
		MessageId:    ev.ResultID,
		Body:         body,
		Headers: amqp.Table{
			"event_type": ev.EventType,
			"exam_id":    ev.ExamID,
			"student_id": ev.StudentID,
		},
	}, nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			slog.Warn("error closing RabbitMQ channel", "error", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close RabbitMQ connection: %w", err)
		}
	}
	return nil
}
