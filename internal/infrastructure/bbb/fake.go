// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package bbb

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// FakeClient is an in-memory conferencing server. It is safe for concurrent
// use and is used by tests and by local runs without a configured server.
type FakeClient struct {
	mu         sync.Mutex
	baseURL    string
	meetings   map[string]*fakeMeeting
	recordings map[string]models.Recording
	calls      map[string]int
	errs       map[string]error
	now        func() time.Time
}

type fakeMeeting struct {
	req       domain.CreateMeetingRequest
	createdAt time.Time
	running   bool
}

// Ensure that FakeClient implements domain.ConferencingClient
var _ domain.ConferencingClient = (*FakeClient)(nil)

// NewFakeClient creates an empty fake. Join URLs are rooted at baseURL.
func NewFakeClient(baseURL string) *FakeClient {
	if baseURL == "" {
		baseURL = "https://bbb.invalid/bigbluebutton/api"
	}
	return &FakeClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		meetings:   make(map[string]*fakeMeeting),
		recordings: make(map[string]models.Recording),
		calls:      make(map[string]int),
		errs:       make(map[string]error),
		now:        time.Now,
	}
}

// FailNext makes every subsequent call named call fail with err until it is
// cleared with a nil error.
func (f *FakeClient) FailNext(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, call)
		return
	}
	f.errs[call] = err
}

// Calls returns how many times call was made.
func (f *FakeClient) Calls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

// AddRecording stores a recording as if the server had produced it.
func (f *FakeClient) AddRecording(rec models.Recording) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Metadata == nil {
		rec.Metadata = map[string]string{}
	}
	f.recordings[rec.RecordID] = rec
}

// SetRunning marks a created meeting as having users in it, or ends it.
func (f *FakeClient) SetRunning(meetingID string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.meetings[meetingID]; ok {
		m.running = running
	}
}

// End removes a meeting so the next create starts a new one.
func (f *FakeClient) End(meetingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.meetings, meetingID)
}

// CreateParams returns the parameters of the last create for meetingID.
func (f *FakeClient) CreateParams(meetingID string) (domain.CreateMeetingRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[meetingID]
	if !ok {
		return domain.CreateMeetingRequest{}, false
	}
	return m.req, true
}

// begin counts the call and returns any injected failure. Callers hold mu.
func (f *FakeClient) begin(call string) error {
	f.calls[call]++
	if err, ok := f.errs[call]; ok {
		return domain.NewExternalServiceError(call, "", "", err)
	}
	return nil
}

func (f *FakeClient) CreateMeeting(_ context.Context, req domain.CreateMeetingRequest) (*domain.MeetingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create"); err != nil {
		return nil, err
	}

	if m, ok := f.meetings[req.MeetingID]; ok {
		return &domain.MeetingInfo{
			MeetingID:         req.MeetingID,
			InternalMeetingID: internalID(req.MeetingID, m.createdAt),
			CreateTime:        m.createdAt,
			HasUserJoined:     m.running,
			MessageKey:        domain.MessageKeyDuplicateWarning,
			Message:           "This conference was already in existence and may currently be in progress.",
		}, nil
	}

	now := f.now().UTC()
	params := make(map[string]string, len(req.Params))
	for k, v := range req.Params {
		params[k] = v
	}
	req.Params = params
	f.meetings[req.MeetingID] = &fakeMeeting{req: req, createdAt: now}

	return &domain.MeetingInfo{
		MeetingID:         req.MeetingID,
		InternalMeetingID: internalID(req.MeetingID, now),
		CreateTime:        now,
	}, nil
}

func (f *FakeClient) JoinMeetingURL(_ context.Context, req domain.JoinRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("join"); err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("fullName", req.FullName)
	params.Set("meetingID", req.MeetingID)
	params.Set("password", req.Password)
	if req.UserID != "" {
		params.Set("userID", req.UserID)
	}
	params.Set("joinViaHtml5", "true")
	return fmt.Sprintf("%s/join?%s", f.baseURL, params.Encode()), nil
}

func (f *FakeClient) IsMeetingRunning(_ context.Context, meetingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("isMeetingRunning"); err != nil {
		return false, err
	}
	m, ok := f.meetings[meetingID]
	return ok && m.running, nil
}

func (f *FakeClient) GetMeetings(_ context.Context) ([]domain.RunningMeeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getMeetings"); err != nil {
		return nil, err
	}
	meetings := make([]domain.RunningMeeting, 0, len(f.meetings))
	for id, m := range f.meetings {
		meetings = append(meetings, domain.RunningMeeting{
			MeetingID:  id,
			Name:       m.req.Name,
			Running:    m.running,
			CreateTime: m.createdAt,
			Recording:  m.req.Params["record"] == "true",
		})
	}
	sort.Slice(meetings, func(i, j int) bool { return meetings[i].MeetingID < meetings[j].MeetingID })
	return meetings, nil
}

func (f *FakeClient) GetRecordings(_ context.Context, meetingIDs ...string) ([]models.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getRecordings"); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(meetingIDs))
	for _, id := range meetingIDs {
		wanted[id] = struct{}{}
	}
	recordings := make([]models.Recording, 0)
	for _, rec := range f.recordings {
		if _, ok := wanted[rec.MeetingID]; len(wanted) > 0 && !ok {
			continue
		}
		recordings = append(recordings, cloneRecording(rec))
	}
	sort.Slice(recordings, func(i, j int) bool { return recordings[i].RecordID < recordings[j].RecordID })
	return recordings, nil
}

func (f *FakeClient) DeleteRecordings(_ context.Context, recordIDs ...string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("deleteRecordings"); err != nil {
		return err
	}
	found := false
	for _, id := range recordIDs {
		if _, ok := f.recordings[id]; ok {
			delete(f.recordings, id)
			found = true
		}
	}
	if !found {
		return domain.NewExternalServiceError("deleteRecordings", "notFound", "We could not find recordings", nil)
	}
	return nil
}

func (f *FakeClient) UpdateRecordings(_ context.Context, recordID string, meta map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("updateRecordings"); err != nil {
		return err
	}
	rec, ok := f.recordings[recordID]
	if !ok {
		return domain.NewExternalServiceError("updateRecordings", "notFound", "We could not find recordings", nil)
	}
	for k, v := range meta {
		rec.Metadata[strings.TrimPrefix(k, metaPrefix)] = v
	}
	f.recordings[recordID] = rec
	return nil
}

func internalID(meetingID string, created time.Time) string {
	return fmt.Sprintf("%s-%d", meetingID, created.UnixMilli())
}

func cloneRecording(rec models.Recording) models.Recording {
	meta := make(map[string]string, len(rec.Metadata))
	for k, v := range rec.Metadata {
		meta[k] = v
	}
	rec.Metadata = meta
	rec.Playbacks = append([]models.Playback(nil), rec.Playbacks...)
	return rec
}
