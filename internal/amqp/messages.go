package amqp

import (
	"encoding/json"
	"time"
)

// SubmissionSyncMessage asks the mirror worker to copy one stored submission
// to the spreadsheet. The worker reads the full record from the database.
type SubmissionSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSubmissionSyncMessage(id, version int64) *SubmissionSyncMessage {
	return &SubmissionSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *SubmissionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SubmissionSyncMessageFromJSON(data []byte) (*SubmissionSyncMessage, error) {
	var msg SubmissionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
