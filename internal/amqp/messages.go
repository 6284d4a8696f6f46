package amqp

import (
	"encoding/json"
	"time"
)

// TransactionRecordedMessage announces a created or updated transaction
// to the export worker. It carries only identifiers; the worker fetches
// the full record from the store.
type TransactionRecordedMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionDeletedMessage announces a deleted transaction.
type TransactionDeletedMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(id, userID string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{ID: id, UserID: userID, Timestamp: time.Now()}
}

func NewTransactionDeletedMessage(id, userID string) *TransactionDeletedMessage {
	return &TransactionDeletedMessage{ID: id, UserID: userID, Timestamp: time.Now()}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *TransactionDeletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func TransactionDeletedMessageFromJSON(data []byte) (*TransactionDeletedMessage, error) {
	var msg TransactionDeletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
