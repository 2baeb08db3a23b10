// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/bbb"
)

func newRecordingFixture() (*RecordingService, *bbb.FakeClient) {
	fake := bbb.NewFakeClient("")
	fake.AddRecording(models.Recording{RecordID: "rec-1", MeetingID: "m-1", Name: "one"})
	fake.AddRecording(models.Recording{RecordID: "rec-2", MeetingID: "m-1", Name: "two"})
	fake.AddRecording(models.Recording{RecordID: "rec-3", MeetingID: "m-2", Name: "three"})
	return NewRecordingService(fake), fake
}

func TestRecordingService_DeleteEmptyMakesNoCall(t *testing.T) {
	s, fake := newRecordingFixture()

	require.NoError(t, s.DeleteRecordings(context.Background(), nil))
	require.NoError(t, s.DeleteRecordings(context.Background(), []string{}))
	assert.Zero(t, fake.Calls("deleteRecordings"))
}

func TestRecordingService_List(t *testing.T) {
	ctx := context.Background()
	s, fake := newRecordingFixture()

	recs, err := s.ListRecordings(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.ListRecordingsForMeetings(ctx, []string{"m-1", "m-2"})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, 2, fake.Calls("getRecordings"))

	recs, err = s.ListRecordingsForMeetings(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 2, fake.Calls("getRecordings"))

	count, err := s.RecordingCount(ctx, "m-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordingService_DeleteAll(t *testing.T) {
	ctx := context.Background()
	s, fake := newRecordingFixture()

	deleted, err := s.DeleteAllRecordings(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 1, fake.Calls("deleteRecordings"))

	deleted, err = s.DeleteAllRecordings(ctx, "m-1")
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 1, fake.Calls("deleteRecordings"))
}

func TestRecordingService_UpdateMetadata(t *testing.T) {
	ctx := context.Background()
	s, _ := newRecordingFixture()

	require.NoError(t, s.UpdateRecordingMetadata(ctx, "rec-1", map[string]string{"name": "Renamed"}))
	require.NoError(t, s.SetRecordingVisibility(ctx, "rec-1", true))

	rec, err := s.FindRecording(ctx, "m-1", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", rec.Metadata["name"])
	assert.True(t, rec.Listed())

	err = s.UpdateRecordingMetadata(ctx, "", map[string]string{"name": "x"})
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

	err = s.UpdateRecordingMetadata(ctx, "missing", map[string]string{"name": "x"})
	assert.Equal(t, domain.ErrorTypeExternalService, domain.GetErrorType(err))
}

func TestRecordingService_FindRecordingInOtherMeeting(t *testing.T) {
	s, _ := newRecordingFixture()

	_, err := s.FindRecording(context.Background(), "m-1", "rec-3")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestRecordingService_Failures(t *testing.T) {
	s, fake := newRecordingFixture()
	fake.FailNext("getRecordings", errors.New("timeout"))

	_, err := s.ListRecordings(context.Background(), "m-1")
	assert.Equal(t, domain.ErrorTypeExternalService, domain.GetErrorType(err))

	fake.FailNext("deleteRecordings", errors.New("timeout"))
	err = s.DeleteRecordings(context.Background(), []string{"rec-1"})
	assert.Equal(t, domain.ErrorTypeExternalService, domain.GetErrorType(err))
}
