package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charleschow/deskcards/internal/events"
)

// Envelope is the wire format for events mirrored over the WebSocket.
type Envelope struct {
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Title     string    `json:"title,omitempty"`
	Success   bool      `json:"success,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// MarshalEvent serializes an Event into a JSON-encoded Envelope. Parsed is
// not mirrored; Payload already carries the same data.
func MarshalEvent(evt events.Event) ([]byte, error) {
	env := Envelope{
		Kind:      string(evt.Kind),
		Subject:   evt.SubjectID,
		Payload:   evt.Payload,
		Title:     evt.Title,
		Success:   evt.Success,
		Timestamp: evt.Timestamp,
	}
	return json.Marshal(env)
}

// UnmarshalEvent deserializes a JSON Envelope back into an Event.
func UnmarshalEvent(data []byte) (events.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	kind := events.Kind(env.Kind)
	if !kind.Valid() {
		return events.Event{}, fmt.Errorf("unknown event kind: %q", env.Kind)
	}
	return events.Event{
		Kind:      kind,
		SubjectID: env.Subject,
		Payload:   env.Payload,
		Title:     env.Title,
		Success:   env.Success,
		Timestamp: env.Timestamp,
	}, nil
}
