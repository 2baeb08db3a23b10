// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"

	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-whistle-service/cmd/whistle-api/service"
)

// ListRecordings lists a room's recordings. Guests see listed ones only.
func (s *WhistleAPI) ListRecordings(w http.ResponseWriter, r *http.Request) {
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
	recordings, err := s.recordingService.ListRecordings(ctx, room.BBBID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, service.ConvertDomainToRecordingResponses(recordings, isMember(room, requester)))
}

// DeleteAllRecordings deletes every recording of a room.
func (s *WhistleAPI) DeleteAllRecordings(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	room, err := s.roomService.GetRoomForMember(ctx, roomUID(r), requester)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	deleted, err := s.recordingService.DeleteAllRecordings(ctx, room.BBBID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	slog.InfoContext(ctx, "deleted room recordings", "room_uid", room.UID, "count", deleted)
	writeJSON(w, r, http.StatusOK, map[string]int{"deleted": deleted})
}

// DeleteRecording deletes one recording of a room.
func (s *WhistleAPI) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	room, err := s.roomService.GetRoomForMember(ctx, roomUID(r), requester)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	recording, err := s.recordingService.FindRecording(ctx, room.BBBID, goahttp.Vars(r)["record_id"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.recordingService.DeleteRecordings(ctx, []string{recording.RecordID}); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateRecording changes a recording's name, description or visibility.
func (s *WhistleAPI) UpdateRecording(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.UpdateRecordingPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := service.ValidateUpdateRecordingPayload(&payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	room, err := s.roomService.GetRoomForMember(ctx, roomUID(r), requester)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	recording, err := s.recordingService.FindRecording(ctx, room.BBBID, goahttp.Vars(r)["record_id"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	fields := service.ConvertUpdateRecordingPayloadToMetadata(&payload)
	if err := s.recordingService.UpdateRecordingMetadata(ctx, recording.RecordID, fields); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMyRecordings lists the recordings of every room the caller owns.
func (s *WhistleAPI) ListMyRecordings(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	rooms, err := s.roomService.OwnedRooms(ctx, requester.UserID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	meetingIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		meetingIDs = append(meetingIDs, room.BBBID)
	}
	recordings, err := s.recordingService.ListRecordingsForMeetings(ctx, meetingIDs)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, service.ConvertRecordingsToRoomRecordings(recordings, rooms))
}

// RecordingsCount reports how many recordings a room has.
func (s *WhistleAPI) RecordingsCount(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	room, err := s.roomService.GetRoomForMember(ctx, roomUID(r), requester)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	count, err := s.recordingService.RecordingCount(ctx, room.BBBID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"count": count})
}

// UpdateRecordingVisibility lists or unlists a recording for guests.
func (s *WhistleAPI) UpdateRecordingVisibility(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	var payload service.RecordingVisibilityPayload
	if err := decodeBody(r, &payload); err != nil {
		s.handleError(w, r, err)
		return
	}

	room, err := s.roomService.GetRoomForMember(ctx, roomUID(r), requester)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	recording, err := s.recordingService.FindRecording(ctx, room.BBBID, goahttp.Vars(r)["record_id"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.recordingService.SetRecordingVisibility(ctx, recording.RecordID, payload.Listed); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
