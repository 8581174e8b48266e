package amqp

import (
	"encoding/json"
	"time"

	"moneta/internal/core"
)

// LedgerChangeMessage tells collaborators that the aggregates of one or two
// owner-months changed. It carries keys only; consumers fetch the current
// summary from storage, so a stale or duplicated message is harmless.
type LedgerChangeMessage struct {
	Owner     string          `json:"owner"`
	MonthKeys []core.MonthKey `json:"month_keys"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewLedgerChangeMessage(owner string, monthKeys []core.MonthKey) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Owner:     owner,
		MonthKeys: monthKeys,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON creates a message from JSON bytes
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
