package domain

import "github.com/shopspring/decimal"

type Tier int

const (
	TierUnregistered Tier = 1
	TierRegistered   Tier = 2
	TierTag          Tier = 3
)

func (t Tier) Valid() bool {
	return t >= TierUnregistered && t <= TierTag
}

type BillingCategory string

const (
	CategoryTraditional BillingCategory = "tradicional"
	CategoryDigital     BillingCategory = "digital"
	CategoryExpress     BillingCategory = "express"
)

// ModalityDecision is the resolver's classification of a crossing.
type ModalityDecision struct {
	Tier             Tier            `json:"tier"`
	Category         BillingCategory `json:"category"`
	SurchargeApplies bool            `json:"surcharge_applies"`
	InviteToRegister bool            `json:"invite_to_register"`
	Description      string          `json:"description"`
}

type FareCalculation struct {
	TollPointID string          `json:"toll_point_id"`
	TollName    string          `json:"toll_name"`
	Tier        Tier            `json:"tier"`
	BaseFare    decimal.Decimal `json:"base_fare"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	FinalFare   decimal.Decimal `json:"final_fare"`
	Currency    string          `json:"currency"`
}
