// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-whistle-service/cmd/whistle-api/service"
)

// joinWaitingStatus is returned while the meeting has not been started.
const joinWaitingStatus = "waiting"

// StartRoom starts the room's meeting and returns the moderator join URL.
func (s *WhistleAPI) StartRoom(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.StartPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	reqCtx := s.requestContext(r, requester, payload.RecordingConsent, payload.BannerMessage)
	redirectURL, err := s.sessionService.StartRoom(ctx, roomUID(r), requester, reqCtx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"redirect_url": redirectURL})
}

// JoinRoom joins the room's meeting. When the meeting cannot be started by
// the caller and is not running yet, 202 tells the client to wait on the
// waiting room socket.
func (s *WhistleAPI) JoinRoom(w http.ResponseWriter, r *http.Request) {
	requester, err := s.requester(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.JoinPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := service.ValidateJoinPayload(&payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	reqCtx := s.requestContext(r, requester, payload.RecordingConsent, payload.BannerMessage)
	result, err := s.sessionService.JoinRoom(ctx, roomUID(r), requester, service.ConvertJoinPayloadToDomain(&payload), reqCtx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if result.Waiting {
		writeJSON(w, r, http.StatusAccepted, map[string]string{"status": joinWaitingStatus})
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// WaitingRoom upgrades to a WebSocket that receives {"action":"started"}
// once the room's meeting is started.
func (s *WhistleAPI) WaitingRoom(w http.ResponseWriter, r *http.Request) {
	uid := roomUID(r)
	if _, err := s.roomService.GetRoom(r.Context(), uid); err != nil {
		s.handleError(w, r, err)
		return
	}
	slog.DebugContext(r.Context(), "guest waiting for room", "room_uid", uid)
	s.waitingRoom.HandleWaiting(w, r, uid)
}

// MonthlySessions returns the caller's session allowance for this month.
func (s *WhistleAPI) MonthlySessions(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	usage, remaining, err := s.sessionService.MonthlySessions(ctx, requester.UserID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, service.ConvertMonthlySessionsToResponse(usage, remaining))
}
