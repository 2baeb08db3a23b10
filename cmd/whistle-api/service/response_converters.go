// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	svc "github.com/linuxfoundation/lfx-v2-whistle-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/utils"
)

const metaListed = models.MetaListed

// ConvertDomainToRoomResponse converts a room for display. Members see the
// settings, shared users and access code; everyone else sees the public part.
func ConvertDomainToRoomResponse(room *models.Room, member bool) *RoomResponse {
	if room == nil {
		return nil
	}
	resp := &RoomResponse{
		UID:           room.UID,
		Name:          room.Name,
		OwnerID:       room.OwnerID,
		OwnerName:     room.OwnerName,
		HasAccessCode: room.HasAccessCode(),
	}
	if !member {
		return resp
	}

	resp.Settings = utils.Ptr(room.Settings)
	resp.SharedWith = room.SharedWith
	resp.AccessCode = room.AccessCode
	resp.PresentationURL = room.PresentationURL
	resp.Sessions = room.Sessions
	resp.LastSession = room.LastSession
	resp.CreatedAt = room.CreatedAt
	return resp
}

// ConvertRoomsWithStatusToResponse converts an owner's room listing.
func ConvertRoomsWithStatusToResponse(rooms []svc.RoomWithStatus) []*RoomResponse {
	resp := make([]*RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		room := ConvertDomainToRoomResponse(r.Room, true)
		room.Running = utils.Ptr(r.Running)
		resp = append(resp, room)
	}
	return resp
}

// ConvertDomainToRecordingResponses converts recordings. Unless member is
// set, recordings that are not listed are left out.
func ConvertDomainToRecordingResponses(recordings []models.Recording, member bool) []*RecordingResponse {
	resp := make([]*RecordingResponse, 0, len(recordings))
	for _, rec := range recordings {
		if !member && !rec.Listed() {
			continue
		}
		resp = append(resp, &RecordingResponse{
			RecordID:     rec.RecordID,
			Name:         utils.Coalesce(rec.Metadata[metaName], rec.Name),
			Description:  rec.Metadata[metaDescription],
			Published:    rec.Published,
			Listed:       rec.Listed(),
			State:        rec.State,
			StartTime:    rec.StartTime,
			EndTime:      rec.EndTime,
			Length:       rec.LengthString(),
			Participants: rec.Participants,
			Playbacks:    rec.Playbacks,
		})
	}
	return resp
}

// ConvertRecordingsToRoomRecordings attaches each recording to the room
// whose meeting produced it. Recordings of unknown meetings are dropped.
func ConvertRecordingsToRoomRecordings(recordings []models.Recording, rooms []*models.Room) []*RoomRecordingResponse {
	byMeeting := make(map[string]*models.Room, len(rooms))
	for _, room := range rooms {
		byMeeting[room.BBBID] = room
	}

	resp := make([]*RoomRecordingResponse, 0, len(recordings))
	for _, rec := range recordings {
		room, ok := byMeeting[rec.MeetingID]
		if !ok {
			continue
		}
		converted := ConvertDomainToRecordingResponses([]models.Recording{rec}, true)
		resp = append(resp, &RoomRecordingResponse{
			RoomUID:           room.UID,
			RoomName:          room.Name,
			RecordingResponse: converted[0],
		})
	}
	return resp
}

// ConvertMonthlySessionsToResponse converts allowance usage; a negative
// remaining count means the plan has no allowance.
func ConvertMonthlySessionsToResponse(usage *models.MonthlySessions, remaining int) *MonthlySessionsResponse {
	resp := &MonthlySessionsResponse{Month: usage.Month, Used: usage.Used}
	if remaining >= 0 {
		resp.Remaining = utils.Ptr(remaining)
	}
	return resp
}
