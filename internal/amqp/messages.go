package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ImportMessage asks the worker to store one ledger row in Firefly III.
// It carries only identifiers; the worker loads the payload from the ledger.
type ImportMessage struct {
	ImportID   string    `json:"import_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

var ErrMissingImportID = errors.New("message has no import_id")

func NewImportMessage(importID, externalID string) *ImportMessage {
	return &ImportMessage{
		ImportID:   importID,
		ExternalID: externalID,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ImportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportMessageFromJSON decodes and validates a message body.
func ImportMessageFromJSON(data []byte) (*ImportMessage, error) {
	var msg ImportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ImportID == "" {
		return nil, ErrMissingImportID
	}
	return &msg, nil
}
