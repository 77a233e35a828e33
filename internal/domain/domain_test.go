package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionIDIsDeterministic(t *testing.T) {
	ts := time.Date(2025, 11, 7, 14, 30, 0, 0, time.FixedZone("GT", -6*3600))
	e := TollCrossingEvent{Plate: "P-123ABC", TollPointID: "carretera_norte", Timestamp: ts}

	want := "TXN-carretera_norte-P-123ABC-20251107T203000Z"
	if got := e.TransactionID(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	e.EventID = "another-delivery"
	if got := e.TransactionID(); got != want {
		t.Fatalf("event id must not change the transaction id, got %s", got)
	}
}

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		name string
		user UserProfile
		want bool
	}{
		{"explicit registered", UserProfile{UserType: UserRegistered}, true},
		{"explicit unregistered with email", UserProfile{UserType: UserUnregistered, Email: "a@b.c"}, false},
		{"inferred from email", UserProfile{Email: "a@b.c"}, true},
		{"inferred from phone", UserProfile{Phone: "+50255550000"}, true},
		{"no type and no contact", UserProfile{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.IsRegistered(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestUserProfileValidate(t *testing.T) {
	tests := []struct {
		name  string
		user  UserProfile
		field string
	}{
		{"valid", UserProfile{Plate: "P-1", HasTag: true, TagID: "TAG-1"}, ""},
		{"missing plate", UserProfile{}, "plate"},
		{"tag flag without id", UserProfile{Plate: "P-1", HasTag: true}, "tag_id"},
		{"tag id without flag", UserProfile{Plate: "P-1", TagID: "TAG-1"}, "has_tag"},
		{"negative balance", UserProfile{Plate: "P-1", Balance: decimal.NewFromInt(-1)}, "balance"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.user.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentPending, false},
		{PaymentCompleted, PaymentFailed, false},
		{PaymentFailed, PaymentCompleted, false},
		{PaymentCompleted, PaymentPending, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestNormalizePlate(t *testing.T) {
	if got := NormalizePlate("  p-123abc "); got != "P-123ABC" {
		t.Fatalf("expected P-123ABC, got %q", got)
	}
}

func validPriced() PricedCrossing {
	return PricedCrossing{
		ResolvedCrossing: ResolvedCrossing{
			Version:  PayloadVersion,
			Event:    TollCrossingEvent{Plate: "P-1", TollPointID: "carretera_sur", Timestamp: time.Now()},
			Decision: ModalityDecision{Tier: TierUnregistered},
		},
		Fare: FareCalculation{Tier: TierUnregistered, FinalFare: decimal.RequireFromString("18.00"), Currency: "GTQ"},
	}
}

func TestPricedCrossingValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PricedCrossing)
		field  string
	}{
		{"valid", func(*PricedCrossing) {}, ""},
		{"future version", func(p *PricedCrossing) { p.Version = 2 }, "version"},
		{"missing plate", func(p *PricedCrossing) { p.Event.Plate = "" }, "event.plate"},
		{"tier mismatch", func(p *PricedCrossing) { p.Fare.Tier = TierTag }, "fare.tier"},
		{"bad tier", func(p *PricedCrossing) { p.Decision.Tier = 0; p.Fare.Tier = 0 }, "decision.tier"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validPriced()
			tc.mutate(&p)
			err := p.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected error on %q, got %v", tc.field, err)
			}
		})
	}
}
