// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// RecordingService relays recording calls to the conferencing server, which
// owns the recordings.
type RecordingService struct {
	Conferencing domain.ConferencingClient
}

// NewRecordingService creates a new RecordingService.
func NewRecordingService(conferencing domain.ConferencingClient) *RecordingService {
	return &RecordingService{Conferencing: conferencing}
}

// ServiceReady checks if the service is ready for use.
func (s *RecordingService) ServiceReady() bool {
	return s.Conferencing != nil
}

func (s *RecordingService) ready(ctx context.Context) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "recording service not initialized", logging.PriorityCritical())
		return domain.ErrServiceUnavailable
	}
	return nil
}

// ListRecordings returns the recordings of one meeting.
func (s *RecordingService) ListRecordings(ctx context.Context, meetingID string) ([]models.Recording, error) {
	return s.ListRecordingsForMeetings(ctx, []string{meetingID})
}

// ListRecordingsForMeetings returns the recordings of several meetings with a
// single call. No meetings means no recordings.
func (s *RecordingService) ListRecordingsForMeetings(ctx context.Context, meetingIDs []string) ([]models.Recording, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(meetingIDs) == 0 {
		return []models.Recording{}, nil
	}

	recordings, err := s.Conferencing.GetRecordings(ctx, meetingIDs...)
	if err != nil {
		slog.ErrorContext(ctx, "error listing recordings", "meeting_ids", meetingIDs, logging.ErrKey, err)
		return nil, err
	}
	return recordings, nil
}

// DeleteRecordings deletes the given recordings. An empty list is a no-op.
func (s *RecordingService) DeleteRecordings(ctx context.Context, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	if err := s.ready(ctx); err != nil {
		return err
	}

	if err := s.Conferencing.DeleteRecordings(ctx, recordIDs...); err != nil {
		slog.ErrorContext(ctx, "error deleting recordings", "record_ids", recordIDs, logging.ErrKey, err)
		return err
	}
	slog.InfoContext(ctx, "recordings deleted", "record_ids", recordIDs)
	return nil
}

// UpdateRecordingMetadata sets metadata fields on a recording.
func (s *RecordingService) UpdateRecordingMetadata(ctx context.Context, recordID string, fields map[string]string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if recordID == "" {
		return domain.NewValidationError("record id is required", domain.ErrValidationFailed)
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.Conferencing.UpdateRecordings(ctx, recordID, fields); err != nil {
		slog.ErrorContext(ctx, "error updating recording metadata", "record_id", recordID, logging.ErrKey, err)
		return err
	}
	return nil
}

// SetRecordingVisibility marks a recording as listed or unlisted.
func (s *RecordingService) SetRecordingVisibility(ctx context.Context, recordID string, listed bool) error {
	return s.UpdateRecordingMetadata(ctx, recordID, map[string]string{
		models.MetaListed: strconv.FormatBool(listed),
	})
}

// DeleteAllRecordings deletes every recording of a meeting and returns how
// many were deleted.
func (s *RecordingService) DeleteAllRecordings(ctx context.Context, meetingID string) (int, error) {
	recordings, err := s.ListRecordings(ctx, meetingID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(recordings))
	for _, rec := range recordings {
		ids = append(ids, rec.RecordID)
	}
	if err := s.DeleteRecordings(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RecordingCount returns how many recordings a meeting has.
func (s *RecordingService) RecordingCount(ctx context.Context, meetingID string) (int, error) {
	recordings, err := s.ListRecordings(ctx, meetingID)
	if err != nil {
		return 0, err
	}
	return len(recordings), nil
}

// FindRecording returns the recording recordID if it belongs to meetingID.
func (s *RecordingService) FindRecording(ctx context.Context, meetingID, recordID string) (*models.Recording, error) {
	recordings, err := s.ListRecordings(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	for i := range recordings {
		if recordings[i].RecordID == recordID {
			return &recordings[i], nil
		}
	}
	return nil, domain.NewNotFoundError(fmt.Sprintf("recording %q", recordID))
}
