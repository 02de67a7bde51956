package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/roomquest/idverify/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	SessionStarted       = "session.started"
	SessionConsentLogged = "session.consent_logged"
	SessionGuestUpdated  = "session.guest_updated"
	SessionVisitorSaved  = "session.visitor_saved"
	DocumentUploaded     = "session.document_uploaded"
	FaceVerified         = "session.face_verified"
	SessionVerified      = "session.verified"
)

// Event payloads
type SessionStartedEvent struct {
	SessionToken string    `json:"session_token"`
	FlowType     string    `json:"flow_type"`
	CreatedAt    time.Time `json:"created_at"`
}

type ConsentLoggedEvent struct {
	SessionToken string    `json:"session_token"`
	Given        bool      `json:"given"`
	Locale       string    `json:"locale,omitempty"`
	LoggedAt     time.Time `json:"logged_at"`
}

type GuestUpdatedEvent struct {
	SessionToken  string `json:"session_token"`
	GuestName     string `json:"guest_name"`
	ReservationID string `json:"reservation_id"`
}

type VisitorSavedEvent struct {
	SessionToken string `json:"session_token"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
}

type DocumentUploadedEvent struct {
	SessionToken string `json:"session_token"`
	GuestIndex   int    `json:"guest_index"`
	DocumentURL  string `json:"document_url"`
}

type FaceVerifiedEvent struct {
	SessionToken      string  `json:"session_token"`
	GuestIndex        int     `json:"guest_index"`
	GuestVerified     bool    `json:"guest_verified"`
	VerificationScore float64 `json:"verification_score"`
	LivenessScore     float64 `json:"liveness_score"`
	FaceMatchScore    float64 `json:"face_match_score"`
}

type SessionVerifiedEvent struct {
	SessionToken   string    `json:"session_token"`
	FlowType       string    `json:"flow_type"`
	GuestName      string    `json:"guest_name,omitempty"`
	PhysicalRoom   string    `json:"physical_room,omitempty"`
	RoomAccessCode string    `json:"room_access_code,omitempty"`
	VerifiedGuests int       `json:"verified_guests"`
	VerifiedAt     time.Time `json:"verified_at"`
}
