package amqp

import (
	"encoding/json"
	"time"
)

// RebuildCompletedMessage announces that the derived ledger was regenerated.
// Consumers (report export, cache warmers) re-read the ledger on receipt; the
// message itself carries only the rebuild's shape, never event data.
type RebuildCompletedMessage struct {
	AsOf          string    `json:"as_of"`
	HorizonMonths int       `json:"horizon_months"`
	EventsCreated int       `json:"events_created"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewRebuildCompletedMessage(asOf string, horizonMonths, eventsCreated int) *RebuildCompletedMessage {
	return &RebuildCompletedMessage{
		AsOf:          asOf,
		HorizonMonths: horizonMonths,
		EventsCreated: eventsCreated,
		Timestamp:     time.Now(),
	}
}

func (m *RebuildCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RebuildCompletedMessageFromJSON(data []byte) (*RebuildCompletedMessage, error) {
	var msg RebuildCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
