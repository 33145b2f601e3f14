// Package events publishes booking notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"meetsched/internal/models"
)

const DefaultTopic = "meeting.booked.v1"

// MeetingBooked is the payload of a booking notification.
type MeetingBooked struct {
	EventID       string    `json:"event_id"`
	EmployeeEmail string    `json:"employee_email"`
	CalendarEvent string    `json:"calendar_event_id"`
	Summary       string    `json:"summary"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	MeetLink      string    `json:"meet_link,omitempty"`
	Attendees     []string  `json:"attendees"`
	BookedAt      time.Time `json:"booked_at"`
}

// Publisher announces booked meetings.
type Publisher interface {
	MeetingBooked(ctx context.Context, req models.BookingRequest, booked models.BookedEvent) error
	Close() error
}

// NewMeetingBooked builds the payload for a successful booking.
func NewMeetingBooked(req models.BookingRequest, booked models.BookedEvent, at time.Time) MeetingBooked {
	attendees := make([]string, 0, len(booked.Attendees))
	for _, a := range booked.Attendees {
		attendees = append(attendees, a.Email)
	}
	return MeetingBooked{
		EventID:       uuid.NewString(),
		EmployeeEmail: req.EmployeeEmail,
		CalendarEvent: booked.ID,
		Summary:       booked.Summary,
		Start:         booked.Start,
		End:           booked.End,
		MeetLink:      booked.MeetLink,
		Attendees:     attendees,
		BookedAt:      at.UTC(),
	}
}

// Kafka writes one message per booking, keyed by employee email.
type Kafka struct {
	writer *kafka.Writer
	topic  string
}

// NewKafka returns a publisher for the comma-separated broker list.
func NewKafka(brokers, topic string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(SplitBrokers(brokers)...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

func (k *Kafka) MeetingBooked(ctx context.Context, req models.BookingRequest, booked models.BookedEvent) error {
	payload := NewMeetingBooked(req, booked, time.Now())
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode booking event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strings.ToLower(req.EmployeeEmail)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(payload.EventID)},
			{Key: "event_type", Value: []byte(k.topic)},
		},
	}
	msg.Headers = injectTrace(ctx, msg.Headers)
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish booking event: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Noop drops events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) MeetingBooked(context.Context, models.BookingRequest, models.BookedEvent) error {
	return nil
}

func (Noop) Close() error { return nil }

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func injectTrace(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
