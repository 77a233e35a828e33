package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guatepass/tolling/internal/domain"
)

// Store is the part of the user directory that owns tag fields.
type Store interface {
	GetByPlate(ctx context.Context, plate string) (*domain.UserProfile, error)
	GetByTag(ctx context.Context, tagID string) (*domain.UserProfile, error)
	AssignTag(ctx context.Context, plate, tagID string, status domain.TagStatus, at time.Time) error
	UpdateTag(ctx context.Context, plate, tagID string, status domain.TagStatus, at time.Time) error
	RemoveTag(ctx context.Context, plate string, at time.Time) error
}

type Owner struct {
	Name     string          `json:"name"`
	Email    string          `json:"email,omitempty"`
	Phone    string          `json:"phone,omitempty"`
	UserType domain.UserType `json:"user_type"`
	Status   string          `json:"status"`
}

// TagInfo is a plate's tag binding as exposed to callers.
type TagInfo struct {
	Plate     string           `json:"plate"`
	HasTag    bool             `json:"has_tag"`
	TagID     string           `json:"tag_id,omitempty"`
	TagStatus domain.TagStatus `json:"tag_status,omitempty"`
	CreatedAt *time.Time       `json:"tag_created_at,omitempty"`
	UpdatedAt *time.Time       `json:"tag_updated_at,omitempty"`
	RemovedAt *time.Time       `json:"tag_removed_at,omitempty"`
	Owner     Owner            `json:"owner"`
}

type UpdateResult struct {
	Plate     string           `json:"plate"`
	OldTagID  string           `json:"old_tag_id"`
	TagID     string           `json:"tag_id"`
	OldStatus domain.TagStatus `json:"old_status"`
	TagStatus domain.TagStatus `json:"tag_status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type RemoveResult struct {
	Plate        string    `json:"plate"`
	RemovedTagID string    `json:"removed_tag_id"`
	RemovedAt    time.Time `json:"removed_at"`
}

// Service manages tag bindings. It is the only writer of tag fields.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger.With("component", "tags"), now: time.Now}
}

// Associate binds a tag to a plate that has none. The status defaults to
// active.
func (s *Service) Associate(ctx context.Context, plate, tagID string, status domain.TagStatus) (*TagInfo, error) {
	plate = domain.NormalizePlate(plate)
	tagID = strings.TrimSpace(tagID)
	if status == "" {
		status = domain.TagActive
	}
	if err := validatePlate(plate); err != nil {
		return nil, err
	}
	if tagID == "" {
		return nil, domain.NewValidationError("tag_id", "is required")
	}
	if err := validateTag(tagID, status); err != nil {
		return nil, err
	}

	profile, err := s.store.GetByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if profile.HasTag {
		return nil, fmt.Errorf("plate %s already has tag %s, update or remove it first: %w",
			plate, profile.TagID, domain.ErrConflict)
	}
	if err := s.ensureTagFree(ctx, tagID, plate); err != nil {
		return nil, err
	}

	if err := s.store.AssignTag(ctx, plate, tagID, status, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("tag associated", "plate", plate, "tag_id", tagID, "tag_status", status)
	return s.GetByPlate(ctx, plate)
}

// Update changes the tag id, the status, or both. Empty values keep the
// current one.
func (s *Service) Update(ctx context.Context, plate, tagID string, status domain.TagStatus) (*UpdateResult, error) {
	plate = domain.NormalizePlate(plate)
	tagID = strings.TrimSpace(tagID)
	if err := validatePlate(plate); err != nil {
		return nil, err
	}
	if tagID == "" && status == "" {
		return nil, domain.NewValidationError("", "provide tag_id or tag_status")
	}
	if err := validateTag(tagID, status); err != nil {
		return nil, err
	}

	profile, err := s.store.GetByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if !profile.HasTag {
		return nil, fmt.Errorf("plate %s has no tag: %w", plate, domain.ErrNotFound)
	}
	if tagID != "" && tagID != profile.TagID {
		if err := s.ensureTagFree(ctx, tagID, plate); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := s.store.UpdateTag(ctx, plate, tagID, status, now); err != nil {
		return nil, err
	}

	res := &UpdateResult{
		Plate:     plate,
		OldTagID:  profile.TagID,
		TagID:     profile.TagID,
		OldStatus: profile.TagStatus,
		TagStatus: profile.TagStatus,
		UpdatedAt: now,
	}
	if tagID != "" {
		res.TagID = tagID
	}
	if status != "" {
		res.TagStatus = status
	}
	s.logger.Info("tag updated", "plate", plate, "old_tag_id", res.OldTagID, "tag_id", res.TagID, "tag_status", res.TagStatus)
	return res, nil
}

// Remove clears the plate's tag. The profile is kept and stamped with the
// removal time.
func (s *Service) Remove(ctx context.Context, plate string) (*RemoveResult, error) {
	plate = domain.NormalizePlate(plate)
	if err := validatePlate(plate); err != nil {
		return nil, err
	}
	profile, err := s.store.GetByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if !profile.HasTag {
		return nil, fmt.Errorf("plate %s has no tag: %w", plate, domain.ErrNotFound)
	}

	now := s.now()
	if err := s.store.RemoveTag(ctx, plate, now); err != nil {
		return nil, err
	}
	s.logger.Info("tag removed", "plate", plate, "tag_id", profile.TagID)
	return &RemoveResult{Plate: plate, RemovedTagID: profile.TagID, RemovedAt: now}, nil
}

func (s *Service) GetByTag(ctx context.Context, tagID string) (*TagInfo, error) {
	tagID = strings.TrimSpace(tagID)
	if tagID == "" {
		return nil, domain.NewValidationError("tag_id", "is required")
	}
	profile, err := s.store.GetByTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	return toTagInfo(profile), nil
}

// GetByPlate returns the plate's binding. A plate without a tag is not an
// error; HasTag is false.
func (s *Service) GetByPlate(ctx context.Context, plate string) (*TagInfo, error) {
	plate = domain.NormalizePlate(plate)
	if err := validatePlate(plate); err != nil {
		return nil, err
	}
	profile, err := s.store.GetByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	return toTagInfo(profile), nil
}

func (s *Service) ensureTagFree(ctx context.Context, tagID, plate string) error {
	holder, err := s.store.GetByTag(ctx, tagID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case holder.Plate != plate:
		return fmt.Errorf("tag %s is bound to plate %s: %w", tagID, holder.Plate, domain.ErrConflict)
	}
	return nil
}

func validatePlate(plate string) error {
	if plate == "" {
		return domain.NewValidationError("plate", "is required")
	}
	return nil
}

func validateTag(tagID string, status domain.TagStatus) error {
	if tagID != "" && !strings.HasPrefix(tagID, domain.TagPrefix) {
		return domain.NewValidationError("tag_id", "must start with %s", domain.TagPrefix)
	}
	if status != "" && !status.Valid() {
		return domain.NewValidationError("tag_status", "must be one of active, inactive, blocked, lost, stolen")
	}
	return nil
}

func toTagInfo(p *domain.UserProfile) *TagInfo {
	return &TagInfo{
		Plate:     p.Plate,
		HasTag:    p.HasTag,
		TagID:     p.TagID,
		TagStatus: p.TagStatus,
		CreatedAt: p.TagCreatedAt,
		UpdatedAt: p.TagUpdatedAt,
		RemovedAt: p.TagRemovedAt,
		Owner: Owner{
			Name:     p.Name,
			Email:    p.Email,
			Phone:    p.Phone,
			UserType: p.UserType,
			Status:   p.Status,
		},
	}
}
