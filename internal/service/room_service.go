// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/concurrent"
)

const (
	maxUIDAttempts    = 10
	maxUpdateAttempts = 3
	passwordLength    = 12
	accessCodeLength  = 6
	bbbIDBytes        = 20
	passwordAlphabet  = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// CreateRoomInput describes a new room.
type CreateRoomInput struct {
	Name string
	// WithAccessCode gives the room a generated access code.
	WithAccessCode  bool
	Settings        map[string]any
	PresentationURL string
}

// UpdateRoomInput is a partial room update. Nil fields are left unchanged.
type UpdateRoomInput struct {
	Name *string
	// Settings holds weakly typed setting values keyed by setting name.
	Settings map[string]any
	// AccessCode replaces the access code; an empty string removes it.
	AccessCode *string
	// GenerateAccessCode replaces the access code with a new random one.
	GenerateAccessCode bool
}

// RoomWithStatus is a room and whether its meeting is running.
type RoomWithStatus struct {
	Room    *models.Room
	Running bool
}

// RoomService manages the lifecycle of rooms.
type RoomService struct {
	RoomRepository domain.RoomRepository
	Conferencing   domain.ConferencingClient
	EventSender    domain.RoomEventSender
	Tokens         *InviteTokens
	Config         ServiceConfig
	now            func() time.Time
}

// NewRoomService creates a new RoomService.
func NewRoomService(
	roomRepository domain.RoomRepository,
	conferencing domain.ConferencingClient,
	eventSender domain.RoomEventSender,
	config ServiceConfig,
) *RoomService {
	return &RoomService{
		RoomRepository: roomRepository,
		Conferencing:   conferencing,
		EventSender:    eventSender,
		Tokens:         NewInviteTokens(config.InviteTokenCost),
		Config:         config,
		now:            time.Now,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *RoomService) ServiceReady() bool {
	return s.RoomRepository != nil &&
		s.Conferencing != nil &&
		s.EventSender != nil
}

// CreateRoom creates a room owned by owner. The uid is derived from the
// owner's name; a numeric postfix is added when it is taken.
func (s *RoomService) CreateRoom(ctx context.Context, owner Requester, input CreateRoomInput) (*models.Room, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	if !owner.Authenticated() {
		return nil, domain.NewUnauthorizedError("sign in to create a room", domain.ErrUnauthorized)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("room name is required", domain.ErrValidationFailed)
	}
	if input.PresentationURL != "" {
		if u, err := url.Parse(input.PresentationURL); err != nil || !u.IsAbs() {
			return nil, domain.NewValidationError("presentation url must be absolute", domain.ErrValidationFailed)
		}
	}

	settings, err := models.DefaultRoomSettings().Merge(input.Settings)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid room settings: %v", err), domain.ErrValidationFailed)
	}

	room := &models.Room{
		ID:              uuid.New().String(),
		Name:            name,
		OwnerID:         owner.UserID,
		OwnerName:       owner.Name,
		OwnerEmail:      owner.Email,
		BBBID:           randomHex(bbbIDBytes),
		ModeratorPW:     randomString(passwordLength, passwordAlphabet),
		AttendeePW:      randomString(passwordLength, passwordAlphabet),
		Settings:        settings,
		PresentationURL: input.PresentationURL,
	}
	if input.WithAccessCode {
		room.AccessCode = randomString(accessCodeLength, "0123456789")
	}

	slug := roomSlug(owner.Name, owner.UserID)
	room.UID = slug
	for attempt := 1; ; attempt++ {
		now := s.now().UTC()
		room.CreatedAt = &now
		room.UpdatedAt = &now

		err := s.RoomRepository.CreateRoom(ctx, room)
		if err == nil {
			break
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict || attempt >= maxUIDAttempts {
			slog.ErrorContext(ctx, "error creating room", "room_uid", room.UID, logging.ErrKey, err)
			return nil, err
		}
		room.UID = slug + randomString(4, "0123456789")
	}

	slog.InfoContext(ctx, "room created", "room_uid", room.UID, "owner_id", room.OwnerID)
	return room, nil
}

// GetRoom returns a room by uid.
func (s *RoomService) GetRoom(ctx context.Context, uid string) (*models.Room, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	return s.RoomRepository.GetRoom(ctx, uid)
}

// GetRoomForMember returns a room the requester owns or has been given
// access to.
func (s *RoomService) GetRoomForMember(ctx context.Context, uid string, requester Requester) (*models.Room, error) {
	room, err := s.GetRoom(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !room.OwnedBy(requester.UserID) && !room.SharedWithUser(requester.UserID) {
		return nil, domain.NewForbiddenError("not a member of this room", domain.ErrForbidden)
	}
	return room, nil
}

// OwnedRooms returns the owner's rooms, newest first, without asking the
// conferencing server anything.
func (s *RoomService) OwnedRooms(ctx context.Context, ownerID string) ([]*models.Room, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	return s.RoomRepository.ListRoomsByOwner(ctx, ownerID)
}

// ListRooms returns the owner's rooms with their running status. Status
// lookups run concurrently; a failed lookup reports the room as not running.
func (s *RoomService) ListRooms(ctx context.Context, ownerID string) ([]RoomWithStatus, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	rooms, err := s.OwnedRooms(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	pool := concurrent.NewWorkerPool(s.Config.StatusWorkers)
	statuses := concurrent.Map(ctx, pool, rooms, func(ctx context.Context, room *models.Room) (bool, error) {
		return s.Conferencing.IsMeetingRunning(ctx, room.BBBID)
	})

	result := make([]RoomWithStatus, len(rooms))
	var errs []error
	for i, status := range statuses {
		result[i] = RoomWithStatus{Room: rooms[i], Running: status.Value}
		if status.Err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", rooms[i].UID, status.Err))
		}
	}
	if len(errs) > 0 {
		slog.WarnContext(ctx, "failed to fetch running status of some rooms",
			"owner_id", ownerID, logging.ErrKey, errors.Join(errs...))
	}
	return result, nil
}

// UpdateRoom applies a partial update. Only the owner may update a room.
func (s *RoomService) UpdateRoom(ctx context.Context, uid string, requester Requester, input UpdateRoomInput) (*models.Room, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, domain.NewValidationError("room name can't be blank", domain.ErrValidationFailed)
	}
	if input.AccessCode != nil && *input.AccessCode != "" && !validAccessCode(*input.AccessCode) {
		return nil, domain.NewValidationError("access code must be 6 digits", domain.ErrValidationFailed)
	}

	return s.mutateRoom(ctx, uid, requester, func(room *models.Room) error {
		if input.Name != nil {
			room.Name = strings.TrimSpace(*input.Name)
		}
		if len(input.Settings) > 0 {
			settings, err := room.Settings.Merge(input.Settings)
			if err != nil {
				return domain.NewValidationError(fmt.Sprintf("invalid room settings: %v", err), domain.ErrValidationFailed)
			}
			room.Settings = settings
		}
		switch {
		case input.GenerateAccessCode:
			room.AccessCode = randomString(accessCodeLength, "0123456789")
		case input.AccessCode != nil:
			room.AccessCode = *input.AccessCode
		}
		return nil
	})
}

// UpdateSharedAccess replaces the users the room is shared with. The owner
// cannot be among them.
func (s *RoomService) UpdateSharedAccess(ctx context.Context, uid string, requester Requester, userIDs []string) (*models.Room, error) {
	return s.mutateRoom(ctx, uid, requester, func(room *models.Room) error {
		shared := make([]string, 0, len(userIDs))
		for _, id := range userIDs {
			id = strings.TrimSpace(id)
			if id == "" || id == room.OwnerID || slices.Contains(shared, id) {
				continue
			}
			shared = append(shared, id)
		}
		room.SharedWith = shared
		return nil
	})
}

// DeleteRoom soft deletes a room. The uid stays reserved.
func (s *RoomService) DeleteRoom(ctx context.Context, uid string, requester Requester) error {
	room, err := s.mutateRoom(ctx, uid, requester, func(room *models.Room) error {
		room.Deleted = true
		return nil
	})
	if err != nil {
		return err
	}

	err = s.EventSender.SendRoomDeleted(ctx, models.RoomDeletedMessage{
		RoomUID:   room.UID,
		MeetingID: room.BBBID,
		OwnerID:   room.OwnerID,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish room deleted", "room_uid", uid, logging.ErrKey, err)
	}
	slog.InfoContext(ctx, "room deleted", "room_uid", uid)
	return nil
}

// InviteLink returns the link participants use to join the room. Links of
// rooms with an access code carry a token in place of the code.
func (s *RoomService) InviteLink(ctx context.Context, uid string, requester Requester, baseURL string) (string, error) {
	room, err := s.GetRoomForMember(ctx, uid, requester)
	if err != nil {
		return "", err
	}
	link := strings.TrimSuffix(baseURL, "/") + room.InvitePath()
	if !room.HasAccessCode() {
		return link, nil
	}
	token, err := s.Tokens.Issue(room.AccessCode)
	if err != nil {
		slog.ErrorContext(ctx, "error issuing invite token", "room_uid", uid, logging.ErrKey, err)
		return "", domain.NewInternalError("failed to create invite link", err)
	}
	return link + "?" + url.Values{"pwd": []string{token}}.Encode(), nil
}

// mutateRoom loads the room, checks ownership, applies fn and writes it back,
// retrying when another writer got there first.
func (s *RoomService) mutateRoom(ctx context.Context, uid string, requester Requester, fn func(*models.Room) error) (*models.Room, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	for attempt := 1; ; attempt++ {
		room, revision, err := s.RoomRepository.GetRoomWithRevision(ctx, uid)
		if err != nil {
			return nil, err
		}
		if !room.OwnedBy(requester.UserID) {
			slog.WarnContext(ctx, "room update refused", "room_uid", uid, "user_id", requester.UserID)
			return nil, domain.NewForbiddenError("only the owner can change this room", domain.ErrForbidden)
		}
		if err := fn(room); err != nil {
			return nil, err
		}

		err = s.RoomRepository.UpdateRoom(ctx, room, revision)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, domain.ErrRevisionMismatch) || attempt >= maxUpdateAttempts {
			return nil, err
		}
		slog.DebugContext(ctx, "retrying room update", "room_uid", uid, "attempt", attempt)
	}
}

// roomSlug turns the owner's name into a uid: lowercase letters and digits
// only, falling back to the user id.
func roomSlug(name, fallback string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		for _, r := range strings.ToLower(fallback) {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return "room"
	}
	return b.String()
}

func validAccessCode(code string) bool {
	if len(code) != accessCodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomString(n int, alphabet string) string {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(err)
		}
		out[i] = alphabet[v.Int64()]
	}
	return string(out)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
