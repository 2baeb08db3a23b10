// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// NatsRoomRepository stores rooms in the "rooms" bucket. Besides the room
// document it maintains two indexes: meeting id to room uid, and owner to
// room uid.
type NatsRoomRepository struct {
	*NatsBaseRepository[models.Room]
	keys *KeyBuilder
}

// Ensure that NatsRoomRepository implements domain.RoomRepository
var _ domain.RoomRepository = (*NatsRoomRepository)(nil)

// NewNatsRoomRepository creates a new NATS KV store repository for rooms.
func NewNatsRoomRepository(kvStore INatsKeyValue) *NatsRoomRepository {
	return &NatsRoomRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Room](kvStore, "room"),
		keys:               NewKeyBuilder(""),
	}
}

// CreateRoom stores a new room. A room with the same uid yields a conflict.
func (r *NatsRoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := r.Create(ctx, r.keys.RoomKey(room.UID), room); err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeConflict {
			return domain.NewConflictError(fmt.Sprintf("room %q already exists", room.UID), err)
		}
		return err
	}

	if err := r.PutIndex(ctx, r.keys.MeetingIndexKey(room.BBBID), room.UID); err != nil {
		return err
	}
	if err := r.PutIndex(ctx, r.keys.OwnerIndexKey(room.OwnerID, room.UID), room.UID); err != nil {
		return err
	}
	return nil
}

func (r *NatsRoomRepository) RoomExists(ctx context.Context, uid string) (bool, error) {
	return r.Exists(ctx, r.keys.RoomKey(uid))
}

func (r *NatsRoomRepository) GetRoom(ctx context.Context, uid string) (*models.Room, error) {
	room, _, err := r.GetRoomWithRevision(ctx, uid)
	return room, err
}

// GetRoomWithRevision returns the room and the revision to pass to UpdateRoom.
// Soft-deleted rooms are reported as not found.
func (r *NatsRoomRepository) GetRoomWithRevision(ctx context.Context, uid string) (*models.Room, uint64, error) {
	room, revision, err := r.GetWithRevision(ctx, r.keys.RoomKey(uid))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, 0, roomNotFound(uid)
		}
		return nil, 0, err
	}
	if room.Deleted {
		return nil, 0, roomNotFound(uid)
	}
	return room, revision, nil
}

func (r *NatsRoomRepository) GetRoomByMeetingID(ctx context.Context, bbbID string) (*models.Room, error) {
	uid, err := r.GetIndex(ctx, r.keys.MeetingIndexKey(bbbID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, domain.NewNotFoundError(fmt.Sprintf("room for meeting %q", bbbID), domain.ErrRoomNotFound)
		}
		return nil, err
	}
	return r.GetRoom(ctx, uid)
}

// UpdateRoom writes room if its stored revision still equals revision.
func (r *NatsRoomRepository) UpdateRoom(ctx context.Context, room *models.Room, revision uint64) error {
	now := time.Now().UTC()
	room.UpdatedAt = &now
	err := r.Update(ctx, r.keys.RoomKey(room.UID), room, revision)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeConflict {
			slog.WarnContext(ctx, "room revision mismatch", "room_uid", room.UID, logging.ErrKey, err)
			return domain.NewConflictError(fmt.Sprintf("room %q", room.UID), domain.ErrRevisionMismatch)
		}
		return err
	}

	if room.Deleted {
		// Deleted rooms drop out of their owner's listing and of meeting
		// lookups; the document itself is kept.
		_ = r.DeleteIndex(ctx, r.keys.OwnerIndexKey(room.OwnerID, room.UID))
		_ = r.DeleteIndex(ctx, r.keys.MeetingIndexKey(room.BBBID))
	}
	return nil
}

// IncrementSessions bumps the session counter with compare-and-swap so
// concurrent starts never lose an increment.
func (r *NatsRoomRepository) IncrementSessions(ctx context.Context, uid string, at time.Time) error {
	_, err := r.Mutate(ctx, r.keys.RoomKey(uid), nil, func(room *models.Room) error {
		if room.Deleted {
			return roomNotFound(uid)
		}
		room.Sessions++
		last := at.UTC()
		room.LastSession = &last
		return nil
	})
	return err
}

// ListRoomsByOwner returns the owner's rooms, newest first.
func (r *NatsRoomRepository) ListRoomsByOwner(ctx context.Context, ownerID string) ([]*models.Room, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	prefix := r.keys.OwnerIndexPrefix(ownerID)
	rooms := []*models.Room{}
	for _, key := range keys {
		decoded, err := r.keys.DecodeKey(key)
		if err != nil {
			slog.WarnContext(ctx, "failed to decode key, skipping", "encoded_key", key, logging.ErrKey, err)
			continue
		}
		if !strings.HasPrefix(decoded, prefix) {
			continue
		}

		uid, err := r.GetIndex(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "failed to read owner index, skipping", "key", decoded, logging.ErrKey, err)
			continue
		}
		room, err := r.GetRoom(ctx, uid)
		if err != nil {
			slog.WarnContext(ctx, "failed to get room, skipping", "room_uid", uid, logging.ErrKey, err)
			continue
		}
		rooms = append(rooms, room)
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return createdAt(rooms[i]).After(createdAt(rooms[j]))
	})
	return rooms, nil
}

func createdAt(room *models.Room) time.Time {
	if room.CreatedAt == nil {
		return time.Time{}
	}
	return *room.CreatedAt
}

func roomNotFound(uid string) error {
	return domain.NewNotFoundError(fmt.Sprintf("room %q", uid), domain.ErrRoomNotFound)
}
