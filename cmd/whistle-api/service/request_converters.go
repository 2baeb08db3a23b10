// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"strconv"

	svc "github.com/linuxfoundation/lfx-v2-whistle-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/utils"
)

// Recording metadata keys the API lets owners edit.
const (
	metaName        = "name"
	metaDescription = "description"
)

// ConvertCreateRoomPayloadToDomain converts a create request to service input.
func ConvertCreateRoomPayloadToDomain(payload *CreateRoomPayload) svc.CreateRoomInput {
	return svc.CreateRoomInput{
		Name:            payload.Name,
		WithAccessCode:  payload.WithAccessCode,
		Settings:        payload.Settings,
		PresentationURL: payload.PresentationURL,
	}
}

// ConvertUpdateRoomPayloadToDomain converts a settings update to service input.
func ConvertUpdateRoomPayloadToDomain(payload *UpdateRoomPayload) svc.UpdateRoomInput {
	return svc.UpdateRoomInput{
		Name:               payload.Name,
		Settings:           payload.Settings,
		AccessCode:         payload.AccessCode,
		GenerateAccessCode: payload.GenerateAccessCode,
	}
}

// ConvertJoinPayloadToDomain converts a join request to service input.
func ConvertJoinPayloadToDomain(payload *JoinPayload) svc.JoinInput {
	return svc.JoinInput{
		DisplayName: payload.DisplayName,
		AccessCode:  payload.AccessCode,
		InviteToken: payload.Pwd,
	}
}

// ConvertUpdateRecordingPayloadToMetadata returns the metadata fields to
// send to the conferencing server. Only the fields present are included.
func ConvertUpdateRecordingPayloadToMetadata(payload *UpdateRecordingPayload) map[string]string {
	fields := map[string]string{}
	if payload.Listed != nil {
		fields[metaListed] = strconv.FormatBool(*payload.Listed)
	}
	if payload.Name != nil {
		fields[metaName] = utils.Value(payload.Name)
	}
	if payload.Description != nil {
		fields[metaDescription] = utils.Value(payload.Description)
	}
	return fields
}
