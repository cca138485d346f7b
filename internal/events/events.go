// Package events publishes appointment lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/models"
)

// Type names an appointment event.
type Type string

const (
	AppointmentCreated       Type = "appointment.created"
	AppointmentStatusChanged Type = "appointment.status_changed"
	AppointmentRescheduled   Type = "appointment.rescheduled"
)

var ErrPublisherClosed = errors.New("publisher is closed")

// Event is the payload written for every appointment change.
type Event struct {
	ID              string                   `json:"id"`
	Type            Type                     `json:"type"`
	AppointmentID   string                   `json:"appointmentId"`
	DoctorID        string                   `json:"doctorId"`
	PatientID       string                   `json:"patientId"`
	AppointmentDate time.Time                `json:"appointmentDate"`
	Status          models.AppointmentStatus `json:"status"`
	PreviousStatus  models.AppointmentStatus `json:"previousStatus,omitempty"`
	OccurredAt      time.Time                `json:"occurredAt"`
}

// FromAppointment builds an event of type t describing appt.
func FromAppointment(t Type, appt *models.Appointment) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            t,
		AppointmentID:   appt.ID,
		DoctorID:        appt.DoctorID,
		PatientID:       appt.PatientID,
		AppointmentDate: appt.AppointmentDate.UTC(),
		Status:          appt.Status,
		OccurredAt:      time.Now().UTC(),
	}
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// KafkaPublisher writes events to a single topic keyed by appointment id, so
// every event of one appointment lands on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	mu     sync.RWMutex
	closed bool
}

// NewKafkaPublisher creates a publisher for cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, log zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	errLog := log.With().Str("component", "kafka").Logger()
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            5,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
			Logger:                 kafka.LoggerFunc(func(string, ...any) {}),
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
				errLog.Error().Msgf(msg, args...)
			}),
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg, err := encode(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

func encode(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.AppointmentID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}
