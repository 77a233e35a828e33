package domain

import "fmt"

// PayloadVersion is the schema version of the stage hand-off payloads.
// Consumers reject versions they do not know.
const PayloadVersion = 1

// ResolvedCrossing is the resolver's output: the event plus the owner's
// profile (nil when unknown) and the tier decision.
type ResolvedCrossing struct {
	Version  int               `json:"version"`
	Event    TollCrossingEvent `json:"event"`
	Profile  *UserProfile      `json:"profile,omitempty"`
	Decision ModalityDecision  `json:"decision"`
}

func (r ResolvedCrossing) Validate() error {
	if r.Version != PayloadVersion {
		return NewValidationError("version", "unsupported payload version %d", r.Version)
	}
	if r.Event.Plate == "" {
		return NewValidationError("event.plate", "is required")
	}
	if r.Event.TollPointID == "" {
		return NewValidationError("event.toll_point_id", "is required")
	}
	if r.Event.Timestamp.IsZero() {
		return NewValidationError("event.timestamp", "is required")
	}
	if !r.Decision.Tier.Valid() {
		return NewValidationError("decision.tier", "unknown tier %d", r.Decision.Tier)
	}
	return nil
}

// PricedCrossing is what settlement consumes.
type PricedCrossing struct {
	ResolvedCrossing
	Fare FareCalculation `json:"fare"`
}

func (p PricedCrossing) Validate() error {
	if err := p.ResolvedCrossing.Validate(); err != nil {
		return err
	}
	if p.Fare.Tier != p.Decision.Tier {
		return NewValidationError("fare.tier", "priced for tier %d but resolved as tier %d", p.Fare.Tier, p.Decision.Tier)
	}
	if p.Fare.FinalFare.IsNegative() {
		return NewValidationError("fare.final_fare", "must not be negative")
	}
	if p.Fare.Currency == "" {
		return NewValidationError("fare.currency", "is required")
	}
	return nil
}

// TollName is the display name used on invoices and messages.
func (p PricedCrossing) TollName() string {
	if p.Fare.TollName != "" {
		return p.Fare.TollName
	}
	return p.Event.TollPointID
}

func (p PricedCrossing) String() string {
	return fmt.Sprintf("%s@%s tier=%d fare=%s", p.Event.Plate, p.Event.TollPointID, p.Decision.Tier, p.Fare.FinalFare.StringFixed(2))
}
