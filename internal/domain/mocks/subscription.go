// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// MockSubscriptionProvider implements SubscriptionProvider for testing
type MockSubscriptionProvider struct {
	mock.Mock
}

func (m *MockSubscriptionProvider) GetSubscriptionTier(ctx context.Context, userID string) (models.SubscriptionTier, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.SubscriptionTier), args.Error(1)
}

// MockMonthlySessionRepository implements MonthlySessionRepository for testing
type MockMonthlySessionRepository struct {
	mock.Mock
}

func (m *MockMonthlySessionRepository) ConsumeSession(ctx context.Context, userID, month string, limit int) (int, error) {
	args := m.Called(ctx, userID, month, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockMonthlySessionRepository) ReleaseSession(ctx context.Context, userID, month string) error {
	args := m.Called(ctx, userID, month)
	return args.Error(0)
}

func (m *MockMonthlySessionRepository) GetMonthlySessions(ctx context.Context, userID, month string) (*models.MonthlySessions, error) {
	args := m.Called(ctx, userID, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MonthlySessions), args.Error(1)
}
