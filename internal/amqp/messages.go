package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Change operations carried by TransactionsChangedMessage.
const (
	OpInsert  = "insert"
	OpBatch   = "batch_insert"
	OpDelete  = "delete"
	OpSetPaid = "set_paid"
)

// TransactionsChangedMessage tells other processes that a group's data moved
// so they can drop cached snapshots and the cached annual summary.
type TransactionsChangedMessage struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	Op        string    `json:"op"`
	GroupKey  string    `json:"group_key"`
	IDs       []int64   `json:"ids"`
	Years     []int     `json:"years,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionsChangedMessage stamps a fresh message ID and the current time.
func NewTransactionsChangedMessage(op, groupKey string, ids []int64, years []int) *TransactionsChangedMessage {
	return &TransactionsChangedMessage{
		ID:        uuid.NewString(),
		Op:        op,
		GroupKey:  groupKey,
		IDs:       ids,
		Years:     years,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsChangedMessageFromJSON decodes and sanity-checks a message.
func TransactionsChangedMessageFromJSON(data []byte) (*TransactionsChangedMessage, error) {
	var msg TransactionsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case OpInsert, OpBatch, OpDelete, OpSetPaid:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	if msg.GroupKey == "" {
		return nil, fmt.Errorf("message %s has no group key", msg.ID)
	}
	return &msg, nil
}
