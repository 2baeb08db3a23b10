// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// MockRoomEventSender implements RoomEventSender for testing
type MockRoomEventSender struct {
	mock.Mock
}

func (m *MockRoomEventSender) SendRoomSessionStarted(ctx context.Context, data models.RoomSessionStartedMessage) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockRoomEventSender) SendRoomDeleted(ctx context.Context, data models.RoomDeletedMessage) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

// MockWaitingNotifier implements WaitingNotifier for testing
type MockWaitingNotifier struct {
	mock.Mock
}

func (m *MockWaitingNotifier) NotifyStarted(ctx context.Context, roomUID string) int {
	args := m.Called(ctx, roomUID)
	return args.Int(0)
}
