package amqp

import (
	"encoding/json"
	"time"

	"reportal/internal/core"
)

// RecordEventMessage notifies downstream consumers that a record changed.
// It carries only the identity of the record, consumers fetch the full
// payload from the store when they need it.
type RecordEventMessage struct {
	ID        int64     `json:"id"`
	Kind      core.Kind `json:"kind"`
	Action    string    `json:"action"`
	Zone      string    `json:"zone"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

func NewRecordEventMessage(id int64, kind core.Kind, action, zone string) *RecordEventMessage {
	return &RecordEventMessage{
		ID:        id,
		Kind:      kind,
		Action:    action,
		Zone:      zone,
		Timestamp: time.Now(),
	}
}

func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
