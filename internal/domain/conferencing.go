// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// MessageKeyDuplicateWarning is returned by the conferencing server when a
// create call names a meeting that already exists.
const MessageKeyDuplicateWarning = "duplicateWarning"

// CreateMeetingRequest is the input of a create call.
type CreateMeetingRequest struct {
	MeetingID   string
	Name        string
	ModeratorPW string
	AttendeePW  string
	Params      map[string]string
	// PresentationURL preloads a document into the meeting when set.
	PresentationURL string
}

// MeetingInfo is the conferencing server's answer to a create call.
type MeetingInfo struct {
	MeetingID         string
	InternalMeetingID string
	CreateTime        time.Time
	HasUserJoined     bool
	MessageKey        string
	Message           string
}

// Duplicate reports whether the meeting already existed.
func (m *MeetingInfo) Duplicate() bool {
	return m != nil && m.MessageKey == MessageKeyDuplicateWarning
}

// JoinRequest is the input for building a join URL.
type JoinRequest struct {
	MeetingID string
	FullName  string
	Password  string
	UserID    string
}

// RunningMeeting summarizes a meeting currently on the conferencing server.
type RunningMeeting struct {
	MeetingID            string    `json:"meeting_id"`
	Name                 string    `json:"name"`
	Running              bool      `json:"running"`
	ParticipantCount     int       `json:"participant_count"`
	ModeratorCount       int       `json:"moderator_count"`
	CreateTime           time.Time `json:"create_time"`
	Recording            bool      `json:"recording"`
	HasBeenForciblyEnded bool      `json:"has_been_forcibly_ended"`
}

// ConferencingClient is the conferencing server's API surface used by the
// service. All failures are returned as external service errors.
type ConferencingClient interface {
	CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*MeetingInfo, error)
	JoinMeetingURL(ctx context.Context, req JoinRequest) (string, error)
	IsMeetingRunning(ctx context.Context, meetingID string) (bool, error)
	GetMeetings(ctx context.Context) ([]RunningMeeting, error)
	GetRecordings(ctx context.Context, meetingIDs ...string) ([]models.Recording, error)
	DeleteRecordings(ctx context.Context, recordIDs ...string) error
	UpdateRecordings(ctx context.Context, recordID string, meta map[string]string) error
}
