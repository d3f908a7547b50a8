// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the engine; notification and display collaborators subscribe
// to them without coupling to the command handlers.
const (
	// Ledger events
	EventPointsRecorded EventType = "ledger.points_recorded"

	// Membership events
	EventNumberAssigned    EventType = "membership.number_assigned"
	EventCertificateIssued EventType = "membership.certificate_issued"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsRecordedEvent is emitted when a point transaction is appended to the
// ledger and the cached balance has been updated.
type PointsRecordedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	Type          string `json:"tx_type"` // earned, bonus, redeemed, penalty
	Points        int64  `json:"points"`
	NewBalance    int64  `json:"new_balance"`
	Source        string `json:"source"`
}

// Payload implements Event interface.
func (e PointsRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"transaction_id": e.TransactionID,
		"tx_type":        e.Type,
		"points":         e.Points,
		"new_balance":    e.NewBalance,
		"source":         e.Source,
	}
}

// NewPointsRecordedEvent creates a new PointsRecordedEvent.
func NewPointsRecordedEvent(userID, transactionID, txType string, points, newBalance int64, source string) PointsRecordedEvent {
	return PointsRecordedEvent{
		BaseEvent:     NewBaseEvent(EventPointsRecorded, userID),
		UserID:        userID,
		TransactionID: transactionID,
		Type:          txType,
		Points:        points,
		NewBalance:    newBalance,
		Source:        source,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Membership Events
// ═══════════════════════════════════════════════════════════════════════════

// NumberAssignedEvent is emitted when a membership number is reserved for a user.
type NumberAssignedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Number string `json:"number"`
	Role   string `json:"role"`
}

// Payload implements Event interface.
func (e NumberAssignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"number":  e.Number,
		"role":    e.Role,
	}
}

// NewNumberAssignedEvent creates a new NumberAssignedEvent.
func NewNumberAssignedEvent(userID, number, role string) NumberAssignedEvent {
	return NumberAssignedEvent{
		BaseEvent: NewBaseEvent(EventNumberAssigned, userID),
		UserID:    userID,
		Number:    number,
		Role:      role,
	}
}

// CertificateIssuedEvent is emitted when a membership certificate is minted.
// Forced awards are flagged so downstream consumers can distinguish them.
type CertificateIssuedEvent struct {
	BaseEvent
	UserID            string    `json:"user_id"`
	CertificateID     string    `json:"certificate_id"`
	CertificateNumber string    `json:"certificate_number"`
	Role              string    `json:"role"`
	Forced            bool      `json:"forced"`
	IssueDate         time.Time `json:"issue_date"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":            e.UserID,
		"certificate_id":     e.CertificateID,
		"certificate_number": e.CertificateNumber,
		"role":               e.Role,
		"forced":             e.Forced,
		"issue_date":         e.IssueDate.Format(time.RFC3339),
	}
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(userID, certificateID, certificateNumber, role string, forced bool, issueDate time.Time) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:         NewBaseEvent(EventCertificateIssued, userID),
		UserID:            userID,
		CertificateID:     certificateID,
		CertificateNumber: certificateNumber,
		Role:              role,
		Forced:            forced,
		IssueDate:         issueDate,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
