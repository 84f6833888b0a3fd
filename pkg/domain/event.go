// Package domain provides core domain layer interfaces and types for
// implementing Domain-Driven Design (DDD) patterns with Event Sourcing and
// CQRS.
//
// This package defines the fundamental abstractions for:
//   - Domain events and event handling
//   - Aggregate roots and repositories
//   - Event sourcing infrastructure
//   - Domain services and value objects
//
// The domain layer's types depend on no external packages beyond ksuid for
// event identity, following clean architecture principles; fx is imported
// only by fx.go for DomainModule.
package domain

//go:generate moq -out mocks/event_mock.go -pkg mocks . Event

import (
	"encoding/json"
	"time"

	"github.com/segmentio/ksuid"
)

// Event is the payload produced by an aggregate's Execute. EventType and
// EventVersion together fully identify the payload's shape; AggregateVersion
// is the version this event advances its aggregate to once applied.
type Event interface {
	EventID() string
	EventType() string
	EventVersion() int
	AggregateVersion() int
}

// EventContext carries the causality and actor metadata attached to an
// event: correlation/causation chains plus who or what caused it. All
// fields are optional; the zero value is a context-free event.
type EventContext struct {
	CorrelationID string                 `json:"correlation_id,omitempty"`
	CausationID   string                 `json:"causation_id,omitempty"`
	ActorType     string                 `json:"actor_type,omitempty"`
	ActorID       string                 `json:"actor_id,omitempty"`
	Extensions    map[string]interface{} `json:"extensions,omitempty"`
}

// SerializedEvent is the canonical on-the-wire/on-disk record for one event.
// Field set and names are bit-exact with the wire layout: any storage
// backend round-trips through this shape.
type SerializedEvent struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventVersion     int             `json:"event_version"`
	SequenceNumber   *int64          `json:"sequence_number,omitempty"`
	AggregateID      string          `json:"aggregate_id"`
	AggregateType    string          `json:"aggregate_type"`
	AggregateVersion int             `json:"aggregate_version"`
	CorrelationID    string          `json:"correlation_id,omitempty"`
	CausationID      string          `json:"causation_id,omitempty"`
	ActorType        string          `json:"actor_type,omitempty"`
	ActorID          string          `json:"actor_id,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Payload          json.RawMessage `json:"payload"`
	Context          json.RawMessage `json:"context"`
}

// SerializedSnapshot is the canonical on-the-wire record for an aggregate
// snapshot: the full aggregate state at a known version.
type SerializedSnapshot struct {
	AggregateID      string          `json:"aggregate_id"`
	AggregateType    string          `json:"aggregate_type"`
	AggregateVersion int             `json:"aggregate_version"`
	Payload          json.RawMessage `json:"payload"`
}

// EventEnvelope is the in-memory wrapper around a typed event payload,
// pairing it with its aggregate metadata and causality context. It is what
// an aggregate repository's Save returns and what EncodeEnvelope turns into
// a SerializedEvent.
type EventEnvelope[E Event] struct {
	AggregateID   string
	AggregateType string
	OccurredAt    time.Time
	Payload       E
	Context       EventContext
}

// NewEventEnvelope wraps a payload with the given aggregate binding and
// context, stamping OccurredAt at construction time.
func NewEventEnvelope[E Event](aggregateID, aggregateType string, payload E, ctx EventContext) EventEnvelope[E] {
	return EventEnvelope[E]{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
		Context:       ctx,
	}
}

// NewEventID generates an opaque, globally unique, time-sortable event
// identifier. Every envelope/serialized-event constructor in this module
// uses this single ID space (ksuid), distinct from the uuid space the
// outbox adapters use for their own row identifiers.
func NewEventID() string {
	return ksuid.New().String()
}

type contextWireForm struct {
	CorrelationID string                 `json:"correlation_id,omitempty"`
	CausationID   string                 `json:"causation_id,omitempty"`
	ActorType     string                 `json:"actor_type,omitempty"`
	ActorID       string                 `json:"actor_id,omitempty"`
	Extensions    map[string]interface{} `json:"extensions,omitempty"`
}

// EncodeEnvelope serializes a typed envelope into the canonical
// SerializedEvent record, marshaling the payload as a tagged object
// ({variantName: {...fields}}) via EncodeTagged and mirroring the four
// causality fields into the context blob's top level alongside any
// extensions, per the wire layout's "context blob mirrors causality" rule.
func EncodeEnvelope[E Event](env EventEnvelope[E], variantName string) (SerializedEvent, error) {
	payloadJSON, err := EncodeTagged(variantName, env.Payload)
	if err != nil {
		return SerializedEvent{}, NewSerializationError(err)
	}

	contextJSON, err := json.Marshal(contextWireForm{
		CorrelationID: env.Context.CorrelationID,
		CausationID:   env.Context.CausationID,
		ActorType:     env.Context.ActorType,
		ActorID:       env.Context.ActorID,
		Extensions:    env.Context.Extensions,
	})
	if err != nil {
		return SerializedEvent{}, NewSerializationError(err)
	}

	return SerializedEvent{
		EventID:          env.Payload.EventID(),
		EventType:        env.Payload.EventType(),
		EventVersion:     env.Payload.EventVersion(),
		AggregateID:      env.AggregateID,
		AggregateType:    env.AggregateType,
		AggregateVersion: env.Payload.AggregateVersion(),
		CorrelationID:    env.Context.CorrelationID,
		CausationID:      env.Context.CausationID,
		ActorType:        env.Context.ActorType,
		ActorID:          env.Context.ActorID,
		OccurredAt:       env.OccurredAt,
		Payload:          payloadJSON,
		Context:          contextJSON,
	}, nil
}

// DecodeContext recovers an EventContext from a SerializedEvent's Context
// blob.
func DecodeContext(raw json.RawMessage) (EventContext, error) {
	if len(raw) == 0 {
		return EventContext{}, nil
	}
	var w contextWireForm
	if err := json.Unmarshal(raw, &w); err != nil {
		return EventContext{}, NewSerializationError(err)
	}
	return EventContext{
		CorrelationID: w.CorrelationID,
		CausationID:   w.CausationID,
		ActorType:     w.ActorType,
		ActorID:       w.ActorID,
		Extensions:    w.Extensions,
	}, nil
}

// EncodeTagged marshals value as the variant-tagged wrapper object
// {variantName: {...fields}} that the payload encoding convention requires.
// Upcasters that rename a variant rewrite the outer tag; upcasters that
// change fields rewrite the inner object.
func EncodeTagged(variantName string, value interface{}) (json.RawMessage, error) {
	inner, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	wrapper := map[string]json.RawMessage{variantName: inner}
	return json.Marshal(wrapper)
}

// DecodeTagged extracts the single inner object out of a variant-tagged
// wrapper and reports the variant name that tagged it.
func DecodeTagged(raw json.RawMessage, out interface{}) (variantName string, err error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return "", err
	}
	for name, inner := range wrapper {
		if err := json.Unmarshal(inner, out); err != nil {
			return "", err
		}
		return name, nil
	}
	return "", nil
}
