package amqp

import (
	"encoding/json"
	"errors"
	"fmt"

	"moneywise/internal/core"
)

// EncodeEvent renders e as the JSON message body.
func EncodeEvent(e core.LedgerEvent) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a message body and rejects events missing the fields
// every consumer relies on.
func DecodeEvent(data []byte) (core.LedgerEvent, error) {
	var e core.LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return core.LedgerEvent{}, fmt.Errorf("decode ledger event: %w", err)
	}
	switch {
	case e.ID == "":
		return core.LedgerEvent{}, errors.New("decode ledger event: missing id")
	case e.Type == "":
		return core.LedgerEvent{}, errors.New("decode ledger event: missing type")
	case e.UserID == 0:
		return core.LedgerEvent{}, errors.New("decode ledger event: missing user_id")
	}
	return e, nil
}
