// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// RoomConfig is the site-wide policy applied on top of room settings.
	RoomConfig models.RoomConfiguration
	// TierLimits holds the participant cap of each subscription tier.
	TierLimits models.TierLimits
	// CommunityMonthlySessions is how many sessions a community owner may
	// start per calendar month. Zero disables the allowance.
	CommunityMonthlySessions int
	// InviteTokenCost is the bcrypt cost used for invite tokens. Zero uses
	// the bcrypt default.
	InviteTokenCost int
	// StatusWorkers bounds the concurrent running-status lookups made when
	// listing rooms.
	StatusWorkers int
}

// DefaultServiceConfig returns the configuration used when nothing is set.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		RoomConfig:               models.DefaultRoomConfiguration(),
		TierLimits:               models.DefaultTierLimits(),
		CommunityMonthlySessions: models.DefaultCommunityMonthlySessions,
		StatusWorkers:            5,
	}
}

// Requester identifies the caller of a room operation. A requester without a
// UserID is an unauthenticated guest.
type Requester struct {
	UserID string
	Name   string
	Email  string
}

// Authenticated reports whether the requester carries a user id.
func (r Requester) Authenticated() bool {
	return r.UserID != ""
}
