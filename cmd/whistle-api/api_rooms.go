// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"

	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-whistle-service/cmd/whistle-api/service"
)

// roomUID returns the {uid} path parameter.
func roomUID(r *http.Request) string {
	return goahttp.Vars(r)["uid"]
}

// CreateRoom creates a room owned by the caller.
func (s *WhistleAPI) CreateRoom(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.CreateRoomPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := service.ValidateCreateRoomPayload(&payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	room, err := s.roomService.CreateRoom(ctx, requester, service.ConvertCreateRoomPayloadToDomain(&payload))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, service.ConvertDomainToRoomResponse(room, true))
}

// ListRooms lists the caller's rooms with their running status.
func (s *WhistleAPI) ListRooms(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	rooms, err := s.roomService.ListRooms(ctx, requester.UserID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, service.ConvertRoomsWithStatusToResponse(rooms))
}

// GetRoom returns a room. Guests get the public view used by the join page.
func (s *WhistleAPI) GetRoom(w http.ResponseWriter, r *http.Request) {
	requester, err := s.requester(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	room, err := s.roomService.GetRoom(ctx, roomUID(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, service.ConvertDomainToRoomResponse(room, isMember(room, requester)))
}

// UpdateRoom changes a room's name, settings or access code.
func (s *WhistleAPI) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.UpdateRoomPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := service.ValidateUpdateRoomPayload(&payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	room, err := s.roomService.UpdateRoom(ctx, roomUID(r), requester, service.ConvertUpdateRoomPayloadToDomain(&payload))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, service.ConvertDomainToRoomResponse(room, true))
}

// DeleteRoom soft deletes a room.
func (s *WhistleAPI) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	if err := s.roomService.DeleteRoom(ctx, roomUID(r), requester); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSharedAccess replaces the users a room is shared with.
func (s *WhistleAPI) UpdateSharedAccess(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.SharedAccessPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := service.ValidateSharedAccessPayload(&payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	room, err := s.roomService.UpdateSharedAccess(ctx, roomUID(r), requester, payload.UserIDs)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, service.ConvertDomainToRoomResponse(room, true))
}

// InviteLink returns the link to share with participants.
func (s *WhistleAPI) InviteLink(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	baseURL, _ := s.origin(r)
	link, err := s.roomService.InviteLink(ctx, roomUID(r), requester, baseURL)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"invite_url": link})
}

// RoomStatus reports whether the room's meeting is running.
func (s *WhistleAPI) RoomStatus(w http.ResponseWriter, r *http.Request) {
	running, err := s.sessionService.RoomStatus(r.Context(), roomUID(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	slog.DebugContext(r.Context(), "room status", "room_uid", roomUID(r), "running", running)
	writeJSON(w, r, http.StatusOK, map[string]bool{"running": running})
}

// SendInvitations emails the room's invite link.
func (s *WhistleAPI) SendInvitations(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.InvitationsPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := service.ValidateInvitationsPayload(&payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	baseURL, _ := s.origin(r)
	sent, err := s.invitations.SendInvitations(ctx, roomUID(r), requester, baseURL, payload.Emails, payload.Message)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"sent": sent})
}
