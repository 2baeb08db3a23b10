// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects that the whistle service sends messages about.
const (
	// RoomSessionStartedSubject is published every time a room's meeting is
	// started. Every API replica listens on it to release waiting guests.
	// The subject is of the form: lfx.whistle-api.room.session_started
	RoomSessionStartedSubject = "lfx.whistle-api.room.session_started"

	// RoomDeletedSubject is published after a room is soft deleted.
	// The subject is of the form: lfx.whistle-api.room.deleted
	RoomDeletedSubject = "lfx.whistle-api.room.deleted"
)

// NATS subjects that the whistle service handles messages about.
const (
	// RoomRunningSubject answers whether a room's meeting is running. The
	// request data is the room uid and the reply is "true" or "false".
	// The subject is of the form: lfx.whistle-api.room.running
	RoomRunningSubject = "lfx.whistle-api.room.running"
)

// WhistleAPIQueue is the queue group for request/reply subjects.
const WhistleAPIQueue = "lfx.whistle-api.queue"

// RoomSessionStartedMessage is the payload of RoomSessionStartedSubject.
type RoomSessionStartedMessage struct {
	RoomUID   string    `json:"room_uid"`
	MeetingID string    `json:"meeting_id"`
	StartedBy string    `json:"started_by"`
	StartedAt time.Time `json:"started_at"`
	// NewSession is false when the meeting was already running.
	NewSession bool `json:"new_session"`
}

// RoomDeletedMessage is the payload of RoomDeletedSubject.
type RoomDeletedMessage struct {
	RoomUID   string `json:"room_uid"`
	MeetingID string `json:"meeting_id"`
	OwnerID   string `json:"owner_id"`
}
