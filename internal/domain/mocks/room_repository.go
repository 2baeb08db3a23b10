// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// MockRoomRepository implements RoomRepository for testing
type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomRepository) RoomExists(ctx context.Context, uid string) (bool, error) {
	args := m.Called(ctx, uid)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomRepository) GetRoom(ctx context.Context, uid string) (*models.Room, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomRepository) GetRoomWithRevision(ctx context.Context, uid string) (*models.Room, uint64, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).(*models.Room), args.Get(1).(uint64), args.Error(2)
}

func (m *MockRoomRepository) GetRoomByMeetingID(ctx context.Context, bbbID string) (*models.Room, error) {
	args := m.Called(ctx, bbbID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomRepository) UpdateRoom(ctx context.Context, room *models.Room, revision uint64) error {
	args := m.Called(ctx, room, revision)
	return args.Error(0)
}

func (m *MockRoomRepository) IncrementSessions(ctx context.Context, uid string, at time.Time) error {
	args := m.Called(ctx, uid, at)
	return args.Error(0)
}

func (m *MockRoomRepository) ListRoomsByOwner(ctx context.Context, ownerID string) ([]*models.Room, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Room), args.Error(1)
}
