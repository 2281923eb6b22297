package kafka

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Metadata keys stamped on cart events.
const (
	// MetadataOrigin identifies the service instance that made the change.
	MetadataOrigin = "origin"
	// MetadataChangeKind is the kind of mutation behind the event.
	MetadataChangeKind = "change_kind"
)

// metadataHeaderPrefix namespaces metadata entries copied to message headers.
const metadataHeaderPrefix = "meta-"

// Event is the JSON envelope written as the value of every message.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent wraps data in an envelope with a fresh ID and the current UTC time.
// The aggregate ID becomes the message key.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithMetadata sets a metadata entry. Empty values are skipped.
func (e *Event) WithMetadata(key, value string) *Event {
	if value == "" {
		return e
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// metadataHeaders returns the metadata as header key/value pairs in key order.
func (e *Event) metadataHeaders() [][2]string {
	if len(e.Metadata) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{metadataHeaderPrefix + k, e.Metadata[k]}
	}
	return out
}
