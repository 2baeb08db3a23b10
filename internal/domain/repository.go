// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// RoomRepository defines the interface for room storage operations.
// This interface can be implemented by different storage backends (NATS, PostgreSQL, etc.)
type RoomRepository interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	RoomExists(ctx context.Context, uid string) (bool, error)

	GetRoom(ctx context.Context, uid string) (*models.Room, error)
	GetRoomWithRevision(ctx context.Context, uid string) (*models.Room, uint64, error)
	GetRoomByMeetingID(ctx context.Context, bbbID string) (*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room, revision uint64) error

	// IncrementSessions adds one to the room's session counter and sets its
	// last session time. Concurrent calls must never lose an increment.
	IncrementSessions(ctx context.Context, uid string, at time.Time) error

	ListRoomsByOwner(ctx context.Context, ownerID string) ([]*models.Room, error)
}

// SubscriptionProvider resolves a user's billing plan. It is read-only; the
// billing system owns the data.
type SubscriptionProvider interface {
	GetSubscriptionTier(ctx context.Context, userID string) (models.SubscriptionTier, error)
}

// MonthlySessionRepository tracks the sessions started by community owners.
type MonthlySessionRepository interface {
	// ConsumeSession records one started session for userID in month and
	// returns how many remain. It fails with a validation error when limit
	// sessions were already used.
	ConsumeSession(ctx context.Context, userID, month string, limit int) (int, error)
	// ReleaseSession gives back a session taken by ConsumeSession.
	ReleaseSession(ctx context.Context, userID, month string) error
	GetMonthlySessions(ctx context.Context, userID, month string) (*models.MonthlySessions, error)
}
