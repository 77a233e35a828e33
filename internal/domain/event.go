package domain

import (
	"strings"
	"time"
)

const EventTollDetected = "toll.detected"

// TollCrossingEvent is one canonical sensor detection. It is immutable once
// ingestion has produced it.
type TollCrossingEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Plate       string    `json:"plate"`
	TollPointID string    `json:"toll_point_id"`
	TagID       string    `json:"tag_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ReceivedAt  time.Time `json:"received_at"`
}

// TransactionID derives the deterministic ledger key for the crossing so that
// redelivered events map onto the same transaction.
func (e TollCrossingEvent) TransactionID() string {
	ts := e.Timestamp.UTC().Format(time.RFC3339)
	ts = strings.NewReplacer(":", "", "-", "").Replace(ts)
	return "TXN-" + e.TollPointID + "-" + e.Plate + "-" + ts
}
