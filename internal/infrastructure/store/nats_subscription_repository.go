// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// NatsSubscriptionRepository reads the subscription records the billing
// system writes to the "subscriptions" bucket.
type NatsSubscriptionRepository struct {
	*NatsBaseRepository[models.Subscription]
	keys *KeyBuilder
}

// Ensure that NatsSubscriptionRepository implements domain.SubscriptionProvider
var _ domain.SubscriptionProvider = (*NatsSubscriptionRepository)(nil)

func NewNatsSubscriptionRepository(kvStore INatsKeyValue) *NatsSubscriptionRepository {
	return &NatsSubscriptionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Subscription](kvStore, "subscription"),
		keys:               NewKeyBuilder(""),
	}
}

// GetSubscriptionTier returns the user's tier. Users without a record, or
// with an inactive one, are on the community tier.
func (r *NatsSubscriptionRepository) GetSubscriptionTier(ctx context.Context, userID string) (models.SubscriptionTier, error) {
	if userID == "" {
		return models.TierCommunity, nil
	}

	sub, err := r.Get(ctx, r.keys.SubscriptionKey(userID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return models.TierCommunity, nil
		}
		return models.TierUnknown, err
	}
	if !sub.Active {
		return models.TierCommunity, nil
	}

	tier := models.ParseSubscriptionTier(string(sub.Tier))
	if tier == models.TierUnknown {
		slog.WarnContext(ctx, "unrecognized subscription tier", "user_id", userID, "tier", sub.Tier)
	}
	return tier, nil
}
