// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package service converts between the JSON bodies of the whistle API and
// the domain and service types.
package service

import (
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// CreateRoomPayload is the body of POST /rooms.
type CreateRoomPayload struct {
	Name            string         `json:"name"`
	WithAccessCode  bool           `json:"with_access_code"`
	Settings        map[string]any `json:"room_settings,omitempty"`
	PresentationURL string         `json:"presentation_url,omitempty"`
}

// UpdateRoomPayload is the body of PUT /rooms/{uid}/settings.
type UpdateRoomPayload struct {
	Name               *string        `json:"name,omitempty"`
	Settings           map[string]any `json:"room_settings,omitempty"`
	AccessCode         *string        `json:"access_code,omitempty"`
	GenerateAccessCode bool           `json:"generate_access_code,omitempty"`
}

// SharedAccessPayload is the body of PUT /rooms/{uid}/shared_access.
type SharedAccessPayload struct {
	UserIDs []string `json:"user_ids"`
}

// StartPayload is the optional body of POST /rooms/{uid}/start.
type StartPayload struct {
	RecordingConsent bool   `json:"recording_consent,omitempty"`
	BannerMessage    string `json:"banner_message,omitempty"`
}

// JoinPayload is the body of POST /rooms/{uid}/join.
type JoinPayload struct {
	DisplayName string `json:"display_name"`
	AccessCode  string `json:"access_code,omitempty"`
	// Pwd is the token carried by invite links.
	Pwd              string `json:"pwd,omitempty"`
	RecordingConsent bool   `json:"recording_consent,omitempty"`
	BannerMessage    string `json:"banner_message,omitempty"`
}

// InvitationsPayload is the body of POST /rooms/{uid}/invitations.
type InvitationsPayload struct {
	Emails  []string `json:"emails"`
	Message string   `json:"message,omitempty"`
}

// UpdateRecordingPayload is the body of PATCH /rooms/{uid}/recordings/{record_id}.
type UpdateRecordingPayload struct {
	Listed      *bool   `json:"listed,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RecordingVisibilityPayload is the body of
// PUT /rooms/{uid}/recordings/{record_id}/visibility.
type RecordingVisibilityPayload struct {
	Listed bool `json:"listed"`
}

// RoomResponse is a room as the API shows it. Passwords are never included;
// the access code only for members.
type RoomResponse struct {
	UID             string               `json:"uid"`
	Name            string               `json:"name"`
	OwnerID         string               `json:"owner_id"`
	OwnerName       string               `json:"owner_name,omitempty"`
	Settings        *models.RoomSettings `json:"room_settings,omitempty"`
	SharedWith      []string             `json:"shared_with,omitempty"`
	AccessCode      string               `json:"access_code,omitempty"`
	HasAccessCode   bool                 `json:"has_access_code"`
	PresentationURL string               `json:"presentation_url,omitempty"`
	Sessions        int                  `json:"sessions"`
	LastSession     *time.Time           `json:"last_session,omitempty"`
	CreatedAt       *time.Time           `json:"created_at,omitempty"`
	Running         *bool                `json:"running,omitempty"`
}

// RecordingResponse is one recording of a room.
type RecordingResponse struct {
	RecordID     string            `json:"record_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Published    bool              `json:"published"`
	Listed       bool              `json:"listed"`
	State        string            `json:"state"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Length       string            `json:"length"`
	Participants int               `json:"participants"`
	Playbacks    []models.Playback `json:"playbacks,omitempty"`
}

// RoomRecordingResponse is a recording in the caller's recording listing.
type RoomRecordingResponse struct {
	RoomUID  string `json:"room_uid"`
	RoomName string `json:"room_name"`
	*RecordingResponse
}

// MonthlySessionsResponse is the caller's session allowance for the month.
type MonthlySessionsResponse struct {
	Month string `json:"month"`
	Used  int    `json:"used"`
	// Remaining is omitted for plans without a monthly allowance.
	Remaining *int `json:"remaining,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
