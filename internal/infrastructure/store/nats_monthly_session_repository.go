// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// NatsMonthlySessionRepository keeps one counter per user and month in the
// "monthly-sessions" bucket.
type NatsMonthlySessionRepository struct {
	*NatsBaseRepository[models.MonthlySessions]
	keys *KeyBuilder
}

// Ensure that NatsMonthlySessionRepository implements domain.MonthlySessionRepository
var _ domain.MonthlySessionRepository = (*NatsMonthlySessionRepository)(nil)

func NewNatsMonthlySessionRepository(kvStore INatsKeyValue) *NatsMonthlySessionRepository {
	return &NatsMonthlySessionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.MonthlySessions](kvStore, "monthly sessions"),
		keys:               NewKeyBuilder(""),
	}
}

// ConsumeSession takes one session from the user's allowance for month.
func (r *NatsMonthlySessionRepository) ConsumeSession(ctx context.Context, userID, month string, limit int) (int, error) {
	initial := func() *models.MonthlySessions {
		return &models.MonthlySessions{UserID: userID, Month: month}
	}
	updated, err := r.Mutate(ctx, r.keys.MonthlyKey(userID, month), initial, func(m *models.MonthlySessions) error {
		if m.Used >= limit {
			return domain.NewValidationError("community plan", domain.ErrSessionsExhausted)
		}
		m.Used++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return limit - updated.Used, nil
}

// ReleaseSession returns one session to the user's allowance for month.
func (r *NatsMonthlySessionRepository) ReleaseSession(ctx context.Context, userID, month string) error {
	_, err := r.Mutate(ctx, r.keys.MonthlyKey(userID, month), nil, func(m *models.MonthlySessions) error {
		if m.Used > 0 {
			m.Used--
		}
		return nil
	})
	return err
}

// GetMonthlySessions returns the usage for month; a month without sessions
// reports zero usage.
func (r *NatsMonthlySessionRepository) GetMonthlySessions(ctx context.Context, userID, month string) (*models.MonthlySessions, error) {
	m, err := r.Get(ctx, r.keys.MonthlyKey(userID, month))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return &models.MonthlySessions{UserID: userID, Month: month}, nil
		}
		return nil, err
	}
	return m, nil
}
