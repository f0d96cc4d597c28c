package model

import (
	"net/mail"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// RewardCategory drives which redemption details a withdrawal needs.
type RewardCategory string

const (
	CategoryAmazon   RewardCategory = "Amazon"
	CategoryGoogle   RewardCategory = "Google"
	CategoryVisa     RewardCategory = "Visa"
	CategoryFreeFire RewardCategory = "FreeFire"
	CategoryPUBG     RewardCategory = "PUBG"
)

// MetadataField names a redemption detail.
type MetadataField string

const (
	FieldEmail          MetadataField = "email"
	FieldPlayerUsername MetadataField = "playerUsername"
	FieldPlayerID       MetadataField = "playerId"
	FieldPhoneNumber    MetadataField = "phoneNumber"
)

// MaxEmailLength bounds every stored email address.
const MaxEmailLength = 255

// maxLengths bounds each redemption detail to its column width.
var maxLengths = map[MetadataField]int{
	FieldEmail:          MaxEmailLength,
	FieldPlayerUsername: 64,
	FieldPlayerID:       64,
	FieldPhoneNumber:    32,
}

var metadataFields = []MetadataField{FieldEmail, FieldPlayerUsername, FieldPlayerID, FieldPhoneNumber}

// requiredFields maps each category to the details a request must carry.
var requiredFields = map[RewardCategory][]MetadataField{
	CategoryAmazon:   {FieldEmail},
	CategoryGoogle:   {FieldEmail},
	CategoryVisa:     {FieldEmail},
	CategoryFreeFire: {FieldPlayerUsername, FieldPlayerID},
	CategoryPUBG:     {FieldPlayerUsername, FieldPlayerID},
}

// Valid reports whether c is a known category.
func (c RewardCategory) Valid() bool {
	_, ok := requiredFields[c]
	return ok
}

// RequiredFields returns the details a withdrawal for this category needs.
func (c RewardCategory) RequiredFields() []MetadataField {
	return requiredFields[c]
}

// Categories lists every known reward category.
func Categories() []RewardCategory {
	return []RewardCategory{CategoryAmazon, CategoryGoogle, CategoryVisa, CategoryFreeFire, CategoryPUBG}
}

// Reward is something coins can be redeemed for.
type Reward struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Category    RewardCategory `db:"category" json:"category"`
	CoinCost    int64          `db:"coin_cost" json:"coinCost"`
	ImageURL    *string        `db:"image_url" json:"imageUrl,omitempty"`
	Available   bool           `db:"available" json:"available"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
	DeletedAt   *time.Time     `db:"deleted_at" json:"-"`
}

// RedemptionMetadata carries the details needed to deliver a reward.
type RedemptionMetadata struct {
	PlayerUsername string `json:"playerUsername,omitempty"`
	PlayerID       string `json:"playerId,omitempty"`
	Email          string `json:"email,omitempty"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
}

// Value returns the trimmed value of a field.
func (m RedemptionMetadata) Value(f MetadataField) string {
	switch f {
	case FieldEmail:
		return strings.TrimSpace(m.Email)
	case FieldPlayerUsername:
		return strings.TrimSpace(m.PlayerUsername)
	case FieldPlayerID:
		return strings.TrimSpace(m.PlayerID)
	case FieldPhoneNumber:
		return strings.TrimSpace(m.PhoneNumber)
	}
	return ""
}

// Invalid returns the fields category requires that m lacks or that are
// malformed, followed by any supplied field longer than its limit.
func (m RedemptionMetadata) Invalid(category RewardCategory) []MetadataField {
	var bad []MetadataField
	for _, f := range category.RequiredFields() {
		v := m.Value(f)
		if v == "" {
			bad = append(bad, f)
			continue
		}
		if f == FieldEmail {
			if _, err := mail.ParseAddress(v); err != nil {
				bad = append(bad, f)
			}
		}
	}
	for _, f := range metadataFields {
		if utf8.RuneCountInString(m.Value(f)) > maxLengths[f] && !slices.Contains(bad, f) {
			bad = append(bad, f)
		}
	}
	return bad
}

// Normalized returns m with every field trimmed.
func (m RedemptionMetadata) Normalized() RedemptionMetadata {
	return RedemptionMetadata{
		PlayerUsername: m.Value(FieldPlayerUsername),
		PlayerID:       m.Value(FieldPlayerID),
		Email:          m.Value(FieldEmail),
		PhoneNumber:    m.Value(FieldPhoneNumber),
	}
}
