// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "strings"

// SubscriptionTier is the billing plan of a user.
type SubscriptionTier string

const (
	// TierUnknown is a plan name the service does not recognize. It gets
	// the community cap and no recording override.
	TierUnknown   SubscriptionTier = ""
	TierCommunity SubscriptionTier = "community"
	TierPlus      SubscriptionTier = "plus"
	TierPro       SubscriptionTier = "pro"
)

// Default participant caps per tier.
const (
	DefaultMaxParticipantsCommunity = 20
	DefaultMaxParticipantsPlus      = 100
	DefaultMaxParticipantsPro       = 300
	DefaultCommunityMonthlySessions = 10
)

// ParseSubscriptionTier accepts the plan names used by the billing system
// (whistle_plus, whistle_pro) as well as the short names.
func ParseSubscriptionTier(v string) SubscriptionTier {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "community", "free", "":
		return TierCommunity
	case "plus", "whistle_plus":
		return TierPlus
	case "pro", "whistle_pro":
		return TierPro
	}
	return TierUnknown
}

// Paid reports whether the tier is a paid plan.
func (t SubscriptionTier) Paid() bool {
	return t == TierPlus || t == TierPro
}

// TierLimits holds the participant cap for each tier.
type TierLimits struct {
	MaxParticipantsCommunity int
	MaxParticipantsPlus      int
	MaxParticipantsPro       int
}

// DefaultTierLimits returns the built-in participant caps.
func DefaultTierLimits() TierLimits {
	return TierLimits{
		MaxParticipantsCommunity: DefaultMaxParticipantsCommunity,
		MaxParticipantsPlus:      DefaultMaxParticipantsPlus,
		MaxParticipantsPro:       DefaultMaxParticipantsPro,
	}
}

// MaxParticipants returns the cap for tier. An unknown tier gets the
// community cap.
func (l TierLimits) MaxParticipants(tier SubscriptionTier) int {
	switch tier {
	case TierPlus:
		return l.MaxParticipantsPlus
	case TierPro:
		return l.MaxParticipantsPro
	}
	return l.MaxParticipantsCommunity
}

// Subscription is the record the billing system keeps per user.
type Subscription struct {
	UserID string           `json:"user_id"`
	Tier   SubscriptionTier `json:"tier"`
	Active bool             `json:"active"`
}

// MonthlySessions tracks how many sessions a community owner has started in a
// calendar month.
type MonthlySessions struct {
	UserID string `json:"user_id"`
	Month  string `json:"month"` // yyyy-mm
	Used   int    `json:"used"`
}
