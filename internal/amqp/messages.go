package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"tablero/internal/annotations"
)

// AnnotationChangedMessage is published after every persisted card edit.
// Amounts are encoded as decimal strings.
type AnnotationChangedMessage struct {
	BoardID   string          `json:"board_id"`
	CardID    string          `json:"card_id"`
	Amount    decimal.Decimal `json:"amount"`
	Paid      bool            `json:"paid"`
	PaidTotal decimal.Decimal `json:"paid_total"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewAnnotationChangedMessage(c annotations.Change) *AnnotationChangedMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &AnnotationChangedMessage{
		BoardID:   c.BoardID,
		CardID:    c.CardID,
		Amount:    c.Annotation.Amount,
		Paid:      c.Annotation.Paid,
		PaidTotal: c.PaidTotal,
		Timestamp: ts.UTC(),
	}
}

func (m *AnnotationChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AnnotationChangedMessageFromJSON(data []byte) (*AnnotationChangedMessage, error) {
	var msg AnnotationChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
