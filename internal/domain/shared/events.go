// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Profile events
	EventProfileCreated EventType = "profile.created"
	EventProfileUpdated EventType = "profile.updated"
	EventProfileRemoved EventType = "profile.removed"
	EventProfileHidden  EventType = "profile.hidden"
	EventProfileShown   EventType = "profile.shown"

	// Matching events
	EventLikeReceived EventType = "matching.like_received"
	EventMatchCreated EventType = "matching.match_created"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
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

// Correlation returns the correlation ID, if any.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileCreatedEvent is emitted when a user submits their first profile.
type ProfileCreatedEvent struct {
	BaseEvent
	Name      string   `json:"name"`
	Interests []string `json:"interests"`
}

// Payload implements Event interface.
func (e ProfileCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":      e.Name,
		"interests": e.Interests,
	}
}

// NewProfileCreatedEvent creates a new ProfileCreatedEvent.
func NewProfileCreatedEvent(profileID int64, name string, interests []string) ProfileCreatedEvent {
	return ProfileCreatedEvent{
		BaseEvent: NewBaseEvent(EventProfileCreated, formatID(profileID)),
		Name:      name,
		Interests: interests,
	}
}

// ProfileChangedEvent covers updates, visibility toggles and removal.
type ProfileChangedEvent struct {
	BaseEvent
	ProfileID int64 `json:"profile_id"`
}

// Payload implements Event interface.
func (e ProfileChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_id": e.ProfileID,
	}
}

// NewProfileChangedEvent creates an event of the given profile.* type.
func NewProfileChangedEvent(eventType EventType, profileID int64) ProfileChangedEvent {
	return ProfileChangedEvent{
		BaseEvent: NewBaseEvent(eventType, formatID(profileID)),
		ProfileID: profileID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Matching Events
// ═══════════════════════════════════════════════════════════════════════════

// LikeReceivedEvent is emitted the first time a viewer likes a target.
// The aggregate is the target, who is the one to be notified.
type LikeReceivedEvent struct {
	BaseEvent
	FromID   int64  `json:"from_id"`
	ToID     int64  `json:"to_id"`
	FromName string `json:"from_name"`
}

// Payload implements Event interface.
func (e LikeReceivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from_id":   e.FromID,
		"to_id":     e.ToID,
		"from_name": e.FromName,
	}
}

// NewLikeReceivedEvent creates a new LikeReceivedEvent.
func NewLikeReceivedEvent(fromID, toID int64, fromName string) LikeReceivedEvent {
	return LikeReceivedEvent{
		BaseEvent: NewBaseEvent(EventLikeReceived, formatID(toID)),
		FromID:    fromID,
		ToID:      toID,
		FromName:  fromName,
	}
}

// MatchCreatedEvent is emitted once per party when a pair becomes mutual.
// RecipientID is the party being told; PartnerID is the other side.
type MatchCreatedEvent struct {
	BaseEvent
	RecipientID     int64  `json:"recipient_id"`
	PartnerID       int64  `json:"partner_id"`
	PartnerName     string `json:"partner_name"`
	PartnerUsername string `json:"partner_username,omitempty"`
}

// Payload implements Event interface.
func (e MatchCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"recipient_id":     e.RecipientID,
		"partner_id":       e.PartnerID,
		"partner_name":     e.PartnerName,
		"partner_username": e.PartnerUsername,
	}
}

// NewMatchCreatedEvent creates a new MatchCreatedEvent.
func NewMatchCreatedEvent(recipientID, partnerID int64, partnerName, partnerUsername string) MatchCreatedEvent {
	return MatchCreatedEvent{
		BaseEvent:       NewBaseEvent(EventMatchCreated, formatID(recipientID)),
		RecipientID:     recipientID,
		PartnerID:       partnerID,
		PartnerName:     partnerName,
		PartnerUsername: partnerUsername,
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
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
