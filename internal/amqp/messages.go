package amqp

import (
	"encoding/json"
	"time"
)

// LedgerSyncMessage notifies the backup worker that the primary snapshot
// changed. It carries only the revision marker; the worker reads the actual
// snapshot from the primary database.
type LedgerSyncMessage struct {
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(revision int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{Revision: revision, Timestamp: time.Now()}
}

func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
