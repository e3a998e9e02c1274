package amqp

import (
	"encoding/json"
	"fmt"

	"bilancio/internal/ledger"
)

// EventToJSON encodes a ledger event as a message body.
func EventToJSON(ev ledger.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// EventFromJSON decodes a message body. Events without an id or type are rejected.
func EventFromJSON(data []byte) (ledger.Event, error) {
	var ev ledger.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ledger.Event{}, err
	}
	if ev.ID == "" || ev.Type == "" {
		return ledger.Event{}, fmt.Errorf("ledger event missing id or type")
	}
	return ev, nil
}
