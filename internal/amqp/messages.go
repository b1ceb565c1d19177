package amqp

import (
	"encoding/json"
	"time"

	"agrogestion/internal/ledger"
)

// ChangeMessage announces a confirmed expense write. It carries ids only;
// consumers reload from the store when they need the record.
type ChangeMessage struct {
	Op        string    `json:"op"`
	ExpenseID string    `json:"expense_id"`
	OwnerID   string    `json:"owner_id"`
	Year      int       `json:"year,omitempty"`
	PrevYear  int       `json:"prev_year,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Origin identifies the publishing process.
	Origin string `json:"origin,omitempty"`
}

func NewChangeMessage(c ledger.Change) *ChangeMessage {
	return &ChangeMessage{
		Op:        c.Op,
		ExpenseID: c.ExpenseID,
		OwnerID:   c.OwnerID,
		Year:      c.Year,
		PrevYear:  c.PrevYear,
		Timestamp: time.Now(),
	}
}

func (m *ChangeMessage) Change() ledger.Change {
	return ledger.Change{Op: m.Op, ExpenseID: m.ExpenseID, OwnerID: m.OwnerID, Year: m.Year, PrevYear: m.PrevYear}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
