// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

func newTestRoom(uid, owner string, created time.Time) *models.Room {
	return &models.Room{
		ID:          uid + "-id",
		UID:         uid,
		Name:        uid + " room",
		OwnerID:     owner,
		BBBID:       uid + "-bbb",
		ModeratorPW: "mod-pw",
		AttendeePW:  "att-pw",
		Settings:    models.DefaultRoomSettings(),
		CreatedAt:   &created,
	}
}

func TestNatsRoomRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsRoomRepository(newMockNatsKeyValue())
	room := newTestRoom("AdaLovelace", "u-1", time.Now())

	require.NoError(t, repo.CreateRoom(ctx, room))

	got, err := repo.GetRoom(ctx, "AdaLovelace")
	require.NoError(t, err)
	assert.Equal(t, room.BBBID, got.BBBID)
	assert.Equal(t, room.Settings, got.Settings)

	byMeeting, err := repo.GetRoomByMeetingID(ctx, room.BBBID)
	require.NoError(t, err)
	assert.Equal(t, room.UID, byMeeting.UID)

	exists, err := repo.RoomExists(ctx, "AdaLovelace")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.CreateRoom(ctx, newTestRoom("AdaLovelace", "u-2", time.Now()))
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
}

func TestNatsRoomRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsRoomRepository(newMockNatsKeyValue())

	_, err := repo.GetRoom(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = repo.GetRoomByMeetingID(ctx, "nothing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	exists, err := repo.RoomExists(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNatsRoomRepository_UpdateRoom(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsRoomRepository(newMockNatsKeyValue())
	require.NoError(t, repo.CreateRoom(ctx, newTestRoom("Ada", "u-1", time.Now())))

	room, rev, err := repo.GetRoomWithRevision(ctx, "Ada")
	require.NoError(t, err)
	room.Name = "Renamed"
	require.NoError(t, repo.UpdateRoom(ctx, room, rev))

	got, err := repo.GetRoom(ctx, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.NotNil(t, got.UpdatedAt)

	room.Name = "Stale"
	err = repo.UpdateRoom(ctx, room, rev)
	assert.ErrorIs(t, err, domain.ErrRevisionMismatch)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
}

func TestNatsRoomRepository_SoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsRoomRepository(newMockNatsKeyValue())
	require.NoError(t, repo.CreateRoom(ctx, newTestRoom("Ada", "u-1", time.Now())))

	room, rev, err := repo.GetRoomWithRevision(ctx, "Ada")
	require.NoError(t, err)
	room.Deleted = true
	require.NoError(t, repo.UpdateRoom(ctx, room, rev))

	_, err = repo.GetRoom(ctx, "Ada")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = repo.GetRoomByMeetingID(ctx, room.BBBID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	rooms, err := repo.ListRoomsByOwner(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	// The uid stays taken.
	exists, err := repo.RoomExists(ctx, "Ada")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNatsRoomRepository_IncrementSessionsConcurrent(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsRoomRepository(kv)
	require.NoError(t, repo.CreateRoom(ctx, newTestRoom("Ada", "u-1", time.Now())))

	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	const starts = 6
	var wg sync.WaitGroup
	for i := 0; i < starts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementSessions(ctx, "Ada", at))
		}()
	}
	wg.Wait()

	room, err := repo.GetRoom(ctx, "Ada")
	require.NoError(t, err)
	assert.Equal(t, starts, room.Sessions)
	require.NotNil(t, room.LastSession)
	assert.True(t, at.Equal(*room.LastSession))

	err = repo.IncrementSessions(ctx, "nobody", at)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestNatsRoomRepository_ListRoomsByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsRoomRepository(newMockNatsKeyValue())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateRoom(ctx, newTestRoom("Old", "u-1", base)))
	require.NoError(t, repo.CreateRoom(ctx, newTestRoom("New", "u-1", base.Add(time.Hour))))
	require.NoError(t, repo.CreateRoom(ctx, newTestRoom("Other", "u-10", base)))

	rooms, err := repo.ListRoomsByOwner(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "New", rooms[0].UID)
	assert.Equal(t, "Old", rooms[1].UID)

	rooms, err = repo.ListRoomsByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestNatsSubscriptionRepository_GetSubscriptionTier(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsSubscriptionRepository(kv)
	kb := NewKeyBuilder("")

	put := func(sub models.Subscription) {
		data, _ := json.Marshal(sub)
		kv.set(kb.SubscriptionKey(sub.UserID), data)
	}
	put(models.Subscription{UserID: "pro-user", Tier: "whistle_pro", Active: true})
	put(models.Subscription{UserID: "lapsed", Tier: models.TierPlus, Active: false})
	put(models.Subscription{UserID: "odd", Tier: "enterprise", Active: true})

	tests := map[string]models.SubscriptionTier{
		"pro-user": models.TierPro,
		"lapsed":   models.TierCommunity,
		"odd":      models.TierUnknown,
		"nobody":   models.TierCommunity,
		"":         models.TierCommunity,
	}
	for user, want := range tests {
		got, err := repo.GetSubscriptionTier(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %q", user)
	}
}

func TestNatsMonthlySessionRepository_ConsumeSession(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMonthlySessionRepository(newMockNatsKeyValue())

	remaining, err := repo.ConsumeSession(ctx, "u-1", "2026-10", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	remaining, err = repo.ConsumeSession(ctx, "u-1", "2026-10", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	_, err = repo.ConsumeSession(ctx, "u-1", "2026-10", 2)
	assert.ErrorIs(t, err, domain.ErrSessionsExhausted)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

	// A new month starts fresh.
	remaining, err = repo.ConsumeSession(ctx, "u-1", "2026-11", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	usage, err := repo.GetMonthlySessions(ctx, "u-1", "2026-10")
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Used)

	usage, err = repo.GetMonthlySessions(ctx, "u-2", "2026-10")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
}

func TestNatsMonthlySessionRepository_ReleaseSession(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMonthlySessionRepository(newMockNatsKeyValue())

	_, err := repo.ConsumeSession(ctx, "u-1", "2026-10", 1)
	require.NoError(t, err)
	_, err = repo.ConsumeSession(ctx, "u-1", "2026-10", 1)
	assert.ErrorIs(t, err, domain.ErrSessionsExhausted)

	require.NoError(t, repo.ReleaseSession(ctx, "u-1", "2026-10"))
	remaining, err := repo.ConsumeSession(ctx, "u-1", "2026-10", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// Releasing never takes usage below zero.
	require.NoError(t, repo.ReleaseSession(ctx, "u-1", "2026-10"))
	require.NoError(t, repo.ReleaseSession(ctx, "u-1", "2026-10"))
	usage, err := repo.GetMonthlySessions(ctx, "u-1", "2026-10")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)

	err = repo.ReleaseSession(ctx, "u-2", "2026-10")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}
