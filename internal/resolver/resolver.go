package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guatepass/tolling/internal/domain"
)

// Directory is the read side of the user directory the resolver needs.
type Directory interface {
	GetByPlate(ctx context.Context, plate string) (*domain.UserProfile, error)
	GetByTag(ctx context.Context, tagID string) (*domain.UserProfile, error)
}

// Policy holds the pricing switches the resolver shares with the fare
// calculator.
type Policy struct {
	Tier2Surcharge bool
}

// Resolution is the outcome of resolving a crossing. Profile is nil when the
// plate is not in the directory.
type Resolution struct {
	Profile  *domain.UserProfile
	Decision domain.ModalityDecision
}

type Resolver struct {
	dir    Directory
	policy Policy
	logger *slog.Logger
}

func New(dir Directory, policy Policy, logger *slog.Logger) *Resolver {
	return &Resolver{dir: dir, policy: policy, logger: logger.With("component", "resolver")}
}

// Resolve finds the owner of a crossing by plate, then by the detected tag,
// and classifies it. An unknown vehicle is Tier 1, not an error; only
// directory failures are returned.
func (r *Resolver) Resolve(ctx context.Context, plate, detectedTagID string) (Resolution, error) {
	profile, err := r.lookup(ctx, plate, detectedTagID)
	if err != nil {
		return Resolution{}, err
	}

	if profile != nil && profile.HasTag && detectedTagID != "" && profile.TagID != detectedTagID {
		r.logger.Warn("detected tag does not match profile",
			"plate", plate, "profile_tag", profile.TagID, "detected_tag", detectedTagID)
	}

	decision := Classify(profile, detectedTagID, r.policy)
	r.logger.Debug("crossing classified", "plate", plate, "tier", decision.Tier, "category", decision.Category)
	return Resolution{Profile: profile, Decision: decision}, nil
}

func (r *Resolver) lookup(ctx context.Context, plate, tagID string) (*domain.UserProfile, error) {
	profile, err := r.dir.GetByPlate(ctx, plate)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup plate %s: %w", plate, err)
	}

	if tagID == "" {
		return nil, nil
	}
	profile, err = r.dir.GetByTag(ctx, tagID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup tag %s: %w", tagID, err)
	}
	r.logger.Info("profile found by tag", "plate", plate, "tag_id", tagID, "profile_plate", profile.Plate)
	return profile, nil
}

// Classify maps a profile and the detected tag to a billing tier. It has no
// side effects. A nil profile, or one that is neither tagged-and-matching nor
// registered, is Tier 1.
func Classify(profile *domain.UserProfile, detectedTagID string, policy Policy) domain.ModalityDecision {
	if profile == nil {
		return tier1()
	}

	if profile.HasTag && detectedTagID != "" && profile.TagID == detectedTagID {
		return domain.ModalityDecision{
			Tier:             domain.TierTag,
			Category:         domain.CategoryExpress,
			SurchargeApplies: false,
			InviteToRegister: false,
			Description:      "Usuario con Tag - Cobro automático express",
		}
	}

	if profile.IsRegistered() {
		return domain.ModalityDecision{
			Tier:             domain.TierRegistered,
			Category:         domain.CategoryDigital,
			SurchargeApplies: policy.Tier2Surcharge,
			InviteToRegister: false,
			Description:      "Usuario registrado - Cobro automático digital",
		}
	}

	return tier1()
}

func tier1() domain.ModalityDecision {
	return domain.ModalityDecision{
		Tier:             domain.TierUnregistered,
		Category:         domain.CategoryTraditional,
		SurchargeApplies: true,
		InviteToRegister: true,
		Description:      "Usuario no registrado - Cobro premium + multa",
	}
}
