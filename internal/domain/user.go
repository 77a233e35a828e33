package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type UserType string

const (
	UserRegistered   UserType = "registrado"
	UserUnregistered UserType = "no_registrado"
)

type TagStatus string

const (
	TagActive   TagStatus = "active"
	TagInactive TagStatus = "inactive"
	TagBlocked  TagStatus = "blocked"
	TagLost     TagStatus = "lost"
	TagStolen   TagStatus = "stolen"
)

// Valid reports whether s is one of the known tag statuses.
func (s TagStatus) Valid() bool {
	switch s {
	case TagActive, TagInactive, TagBlocked, TagLost, TagStolen:
		return true
	}
	return false
}

const AccountActive = "activo"

// TagPrefix is required on every tag identifier bound to a profile.
const TagPrefix = "TAG-"

type UserProfile struct {
	Plate        string          `json:"plate"`
	Name         string          `json:"name"`
	Email        string          `json:"email,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	UserType     UserType        `json:"user_type"`
	HasTag       bool            `json:"has_tag"`
	TagID        string          `json:"tag_id,omitempty"`
	TagStatus    TagStatus       `json:"tag_status,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	TagCreatedAt *time.Time      `json:"tag_created_at,omitempty"`
	TagUpdatedAt *time.Time      `json:"tag_updated_at,omitempty"`
	TagRemovedAt *time.Time      `json:"tag_removed_at,omitempty"`
}

// IsRegistered reports whether the owner signed up for digital billing. A
// profile without an explicit type counts as registered when it carries
// contact details.
func (u *UserProfile) IsRegistered() bool {
	switch u.UserType {
	case UserRegistered:
		return true
	case UserUnregistered:
		return false
	default:
		return u.Email != "" || u.Phone != ""
	}
}

// Validate checks the tag invariant: HasTag and a non-empty TagID go together.
func (u *UserProfile) Validate() error {
	if u.Plate == "" {
		return NewValidationError("plate", "is required")
	}
	if u.HasTag && u.TagID == "" {
		return NewValidationError("tag_id", "required when has_tag is set")
	}
	if !u.HasTag && u.TagID != "" {
		return NewValidationError("has_tag", "must be set when tag_id %q is present", u.TagID)
	}
	if u.Balance.IsNegative() {
		return NewValidationError("balance", "must not be negative")
	}
	return nil
}

// NormalizePlate trims and uppercases a plate. Dashes are kept because they
// are part of the registered plate format (P-123ABC).
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
