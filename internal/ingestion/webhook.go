package ingestion

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guatepass/tolling/internal/domain"
)

const minPlateLength = 5

// TollWebhook is the body camera systems post for a detection. The Spanish
// field names are canonical; the English aliases are accepted as well.
type TollWebhook struct {
	Placa       string  `json:"placa"`
	PeajeID     string  `json:"peaje_id"`
	TagID       *string `json:"tag_id"`
	Timestamp   string  `json:"timestamp"`
	Plate       string  `json:"plate"`
	TollPointID string  `json:"toll_point_id"`
}

func (w TollWebhook) plate() string {
	if w.Placa != "" {
		return w.Placa
	}
	return w.Plate
}

func (w TollWebhook) tollPoint() string {
	if w.PeajeID != "" {
		return w.PeajeID
	}
	return w.TollPointID
}

// Validate reports the first missing or malformed field.
func (w TollWebhook) Validate() error {
	plate := strings.TrimSpace(w.plate())
	switch {
	case plate == "":
		return domain.NewValidationError("placa", "campo requerido faltante")
	case strings.TrimSpace(w.tollPoint()) == "":
		return domain.NewValidationError("peaje_id", "campo requerido faltante")
	case strings.TrimSpace(w.Timestamp) == "":
		return domain.NewValidationError("timestamp", "campo requerido faltante")
	case len(plate) < minPlateLength:
		return domain.NewValidationError("placa", "formato de placa inválido: %s", plate)
	}
	if _, err := ParseTimestamp(w.Timestamp); err != nil {
		return domain.NewValidationError("timestamp", "formato de timestamp inválido: %s", w.Timestamp)
	}
	return nil
}

// ToEvent validates the webhook and builds the canonical event with a fresh
// event id.
func (w TollWebhook) ToEvent(receivedAt time.Time) (domain.TollCrossingEvent, error) {
	if err := w.Validate(); err != nil {
		return domain.TollCrossingEvent{}, err
	}
	ts, _ := ParseTimestamp(w.Timestamp)

	var tagID string
	if w.TagID != nil {
		tagID = strings.TrimSpace(*w.TagID)
	}

	return domain.TollCrossingEvent{
		EventID:     uuid.NewString(),
		EventType:   domain.EventTollDetected,
		Plate:       domain.NormalizePlate(w.plate()),
		TollPointID: strings.TrimSpace(w.tollPoint()),
		TagID:       tagID,
		Timestamp:   ts,
		ReceivedAt:  receivedAt.UTC(),
	}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts ISO-8601 timestamps. Values without a zone are
// taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
