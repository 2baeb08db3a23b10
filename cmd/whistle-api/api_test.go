// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-whistle-service/cmd/whistle-api/service"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/bbb"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/waitroom"
	svc "github.com/linuxfoundation/lfx-v2-whistle-service/internal/service"
)

const (
	adaToken   = "Bearer ada-token"
	graceToken = "Bearer grace-token"
)

type apiFixture struct {
	handler http.Handler
	fake    *bbb.FakeClient
	hub     *waitroom.Hub
	nats    *messaging.MockNATSConn
	mailer  *mocks.MockEmailService
}

func setupAPIForTesting(t *testing.T) *apiFixture {
	t.Helper()

	jwt := &auth.MockJWTAuth{}
	jwt.On("ParseClaims", mock.Anything, adaToken, mock.Anything).
		Return(&auth.HeimdallClaims{Principal: "ada", Name: "Ada Lovelace"}, nil)
	jwt.On("ParseClaims", mock.Anything, graceToken, mock.Anything).
		Return(&auth.HeimdallClaims{Principal: "grace", Name: "Grace Hopper"}, nil)
	jwt.On("ParseClaims", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("token is expired"))

	natsConn := &messaging.MockNATSConn{}
	natsConn.On("IsConnected").Return(true)
	natsConn.On("Publish", mock.Anything, mock.Anything).Return(nil)
	events := messaging.NewMessageBuilder(natsConn)

	mailer := &mocks.MockEmailService{}
	mailer.On("SendRoomInvitation", mock.Anything, mock.Anything).Return(nil)

	f := &apiFixture{
		fake:   bbb.NewFakeClient("https://bbb.example.org/bigbluebutton/api"),
		hub:    waitroom.NewHub(),
		nats:   natsConn,
		mailer: mailer,
	}

	cfg := svc.DefaultServiceConfig()
	rooms := store.NewNatsRoomRepository(store.NewMemoryKeyValue())
	sessions := svc.NewSessionService(
		rooms,
		store.NewNatsSubscriptionRepository(store.NewMemoryKeyValue()),
		store.NewNatsMonthlySessionRepository(store.NewMemoryKeyValue()),
		f.fake,
		events,
		cfg,
	)
	recordings := svc.NewRecordingService(f.fake)
	roomService := svc.NewRoomService(rooms, f.fake, events, cfg)

	api := NewWhistleAPI(
		svc.NewAuthService(jwt),
		roomService,
		sessions,
		recordings,
		svc.NewInvitationService(roomService, mailer),
		waitroom.NewServer(f.hub, nil),
		handlers.NewRoomHandler(sessions, recordings, f.hub),
		"https://whistle.example.org",
	)
	f.handler = newHandler(api)
	return f
}

func (f *apiFixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createRoom(t *testing.T, payload service.CreateRoomPayload) service.RoomResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/rooms", adaToken, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var room service.RoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
	return room
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthChecks(t *testing.T) {
	f := setupAPIForTesting(t)

	for _, path := range []string{"/livez", "/readyz"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK\n", rec.Body.String())
	}
}

func TestCreateRoom(t *testing.T) {
	f := setupAPIForTesting(t)

	t.Run("owner", func(t *testing.T) {
		room := f.createRoom(t, service.CreateRoomPayload{Name: "Analytical Engine", WithAccessCode: true})
		assert.Equal(t, "adalovelace", room.UID)
		assert.Equal(t, "ada", room.OwnerID)
		assert.True(t, room.HasAccessCode)
		assert.Len(t, room.AccessCode, 6)
		assert.NotNil(t, room.Settings)
	})

	t.Run("uid taken", func(t *testing.T) {
		room := f.createRoom(t, service.CreateRoomPayload{Name: "Difference Engine"})
		assert.True(t, strings.HasPrefix(room.UID, "adalovelace"))
		assert.NotEqual(t, "adalovelace", room.UID)
	})

	t.Run("guest", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/rooms", "", service.CreateRoomPayload{Name: "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "401", decode[service.ErrorResponse](t, rec).Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/rooms", "Bearer expired", service.CreateRoomPayload{Name: "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/rooms", adaToken, service.CreateRoomPayload{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetRoom(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine", WithAccessCode: true})

	t.Run("member view", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/rooms/"+created.UID, adaToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		room := decode[service.RoomResponse](t, rec)
		assert.Equal(t, created.AccessCode, room.AccessCode)
		assert.NotNil(t, room.Settings)
		assert.NotContains(t, rec.Body.String(), "moderator_pw")
	})

	t.Run("public view", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/rooms/"+created.UID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		room := decode[service.RoomResponse](t, rec)
		assert.Empty(t, room.AccessCode)
		assert.Nil(t, room.Settings)
		assert.True(t, room.HasAccessCode)
	})

	t.Run("not found", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/rooms/nobody", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "404", decode[service.ErrorResponse](t, rec).Code)
	})
}

func TestUpdateAndDeleteRoom(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine"})

	name := "Renamed"
	rec := f.do(t, http.MethodPut, "/rooms/"+created.UID+"/settings", adaToken, service.UpdateRoomPayload{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decode[service.RoomResponse](t, rec).Name)

	rec = f.do(t, http.MethodPut, "/rooms/"+created.UID+"/settings", graceToken, service.UpdateRoomPayload{Name: &name})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, "/rooms/"+created.UID+"/settings", adaToken, service.UpdateRoomPayload{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/rooms/"+created.UID+"/shared_access", adaToken,
		service.SharedAccessPayload{UserIDs: []string{"grace", "ada", "grace"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"grace"}, decode[service.RoomResponse](t, rec).SharedWith)

	rec = f.do(t, http.MethodGet, "/rooms", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]service.RoomResponse](t, rec)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Running)
	assert.False(t, *listed[0].Running)

	rec = f.do(t, http.MethodDelete, "/rooms/"+created.UID, adaToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.nats.AssertCalled(t, "Publish", models.RoomDeletedSubject, mock.Anything)

	rec = f.do(t, http.MethodGet, "/rooms/"+created.UID, adaToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInviteLink(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine", WithAccessCode: true})

	rec := f.do(t, http.MethodGet, "/rooms/"+created.UID+"/invite", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	link := decode[map[string]string](t, rec)["invite_url"]
	assert.True(t, strings.HasPrefix(link, "https://whistle.example.org/"), link)
	assert.Contains(t, link, "pwd=")

	rec = f.do(t, http.MethodGet, "/rooms/"+created.UID+"/invite", graceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendInvitations(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine"})
	target := "/rooms/" + created.UID + "/invitations"

	rec := f.do(t, http.MethodPost, target, adaToken, service.InvitationsPayload{
		Emails: []string{"grace@example.org"}, Message: "Join us",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"grace@example.org"}, decode[map[string][]string](t, rec)["sent"])
	f.mailer.AssertCalled(t, "SendRoomInvitation", mock.Anything, mock.MatchedBy(func(inv domain.RoomInvitation) bool {
		return inv.InviteURL == "https://whistle.example.org/"+created.UID && inv.InviterName == "Ada Lovelace"
	}))

	rec = f.do(t, http.MethodPost, target, adaToken, service.InvitationsPayload{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, target, graceToken, service.InvitationsPayload{Emails: []string{"x@example.org"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStartAndJoin(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine"})
	base := "/rooms/" + created.UID

	rec := f.do(t, http.MethodPost, base+"/join", "", service.JoinPayload{DisplayName: "Guest One"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "waiting", decode[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodPost, base+"/start", graceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/start", adaToken, service.StartPayload{RecordingConsent: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	startURL := decode[map[string]string](t, rec)["redirect_url"]
	assert.True(t, strings.HasPrefix(startURL, "https://bbb.example.org/bigbluebutton/api/join?"), startURL)
	f.nats.AssertCalled(t, "Publish", models.RoomSessionStartedSubject, mock.Anything)

	rec = f.do(t, http.MethodGet, base+"/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["running"])

	// The meeting counts as running once the moderator is in it.
	meetingID, ok := f.fakeMeeting(t)
	require.True(t, ok)
	f.fake.SetRunning(meetingID, true)

	rec = f.do(t, http.MethodGet, base+"/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["running"])

	rec = f.do(t, http.MethodPost, base+"/join", "", service.JoinPayload{DisplayName: "Guest One"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode[map[string]string](t, rec)["redirect_url"], "fullName=Guest+One")

	// A second start joins the running meeting and does not use up
	// another session.
	rec = f.do(t, http.MethodPost, base+"/start", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.fake.Calls("create"))

	rec = f.do(t, http.MethodGet, "/sessions/monthly", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	usage := decode[service.MonthlySessionsResponse](t, rec)
	assert.Equal(t, 1, usage.Used)
	assert.Equal(t, time.Now().UTC().Format("2006-01"), usage.Month)

	rec = f.do(t, http.MethodGet, "/meetings", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestStartConferencingFailure(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine", WithAccessCode: true})

	f.fake.FailNext("create", errors.New(`Get "https://bbb.example.org/bigbluebutton/api/create?moderatorPW=SECRETMODPW&meta_room-key=`+
		created.AccessCode+`": dial tcp: connection refused`))
	rec := f.do(t, http.MethodPost, "/rooms/"+created.UID+"/start", adaToken, nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[service.ErrorResponse](t, rec)
	assert.Equal(t, "502", body.Code)
	assert.Equal(t, domain.ErrConferencing.Error(), body.Message)
	assert.NotContains(t, rec.Body.String(), "SECRETMODPW")
	assert.NotContains(t, rec.Body.String(), created.AccessCode)

	// The failed start does not use up a session.
	rec = f.do(t, http.MethodGet, "/sessions/monthly", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[service.MonthlySessionsResponse](t, rec).Used)
}

func TestJoinWithAccessCode(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine", WithAccessCode: true})
	base := "/rooms/" + created.UID

	rec := f.do(t, http.MethodPost, base+"/start", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/join", "", service.JoinPayload{DisplayName: "Guest", AccessCode: "000000x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/join", "", service.JoinPayload{DisplayName: "Guest", AccessCode: created.AccessCode})
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	meetingID, ok := f.fakeMeeting(t)
	require.True(t, ok)
	f.fake.SetRunning(meetingID, true)

	rec = f.do(t, http.MethodPost, base+"/join", "", service.JoinPayload{DisplayName: "Guest", AccessCode: created.AccessCode})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRecordings(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine"})

	rec := f.do(t, http.MethodPost, "/rooms/"+created.UID+"/start", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	meetingID, ok := f.fakeMeeting(t)
	require.True(t, ok)
	f.fake.AddRecording(models.Recording{RecordID: "rec-listed", MeetingID: meetingID, Name: "Public",
		Metadata: map[string]string{models.MetaListed: "true"}})
	f.fake.AddRecording(models.Recording{RecordID: "rec-private", MeetingID: meetingID, Name: "Private"})

	base := "/rooms/" + created.UID + "/recordings"

	rec = f.do(t, http.MethodGet, base, adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]service.RecordingResponse](t, rec), 2)

	rec = f.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	guestView := decode[[]service.RecordingResponse](t, rec)
	require.Len(t, guestView, 1)
	assert.Equal(t, "rec-listed", guestView[0].RecordID)

	listed := true
	rec = f.do(t, http.MethodPatch, base+"/rec-private", adaToken, service.UpdateRecordingPayload{Listed: &listed})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPatch, base+"/rec-private", graceToken, service.UpdateRecordingPayload{Listed: &listed})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/rooms/"+created.UID+"/recordings_count", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[map[string]int](t, rec)["count"])

	rec = f.do(t, http.MethodPut, base+"/rec-private/visibility", adaToken, service.RecordingVisibilityPayload{Listed: false})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, base, "", nil)
	assert.Len(t, decode[[]service.RecordingResponse](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/recordings", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]service.RoomRecordingResponse](t, rec)
	require.Len(t, mine, 2)
	assert.Equal(t, created.UID, mine[0].RoomUID)
	assert.Equal(t, "Engine", mine[0].RoomName)

	rec = f.do(t, http.MethodGet, "/recordings", graceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]service.RoomRecordingResponse](t, rec))

	rec = f.do(t, http.MethodDelete, base+"/unknown", adaToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, base+"/rec-listed", adaToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, base, adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["deleted"])

	// Nothing left to delete, so no delete call reaches the server.
	deletes := f.fake.Calls("deleteRecordings")
	rec = f.do(t, http.MethodDelete, base, adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[map[string]int](t, rec)["deleted"])
	assert.Equal(t, deletes, f.fake.Calls("deleteRecordings"))
}

// fakeMeeting returns the meeting id of the only running meeting.
func (f *apiFixture) fakeMeeting(t *testing.T) (string, bool) {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/meetings", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meetings := decode[[]map[string]any](t, rec)
	if len(meetings) != 1 {
		return "", false
	}
	id, ok := meetings[0]["meeting_id"].(string)
	return id, ok
}

func TestWaitingRoomSocket(t *testing.T) {
	f := setupAPIForTesting(t)
	created := f.createRoom(t, service.CreateRoomPayload{Name: "Engine"})

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + created.UID + "/waiting"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return f.hub.Waiting(created.UID) == 1 }, time.Second, 10*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/rooms/"+created.UID+"/start", adaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// The session started event comes back through NATS in production.
	assert.Equal(t, 1, f.hub.NotifyStarted(t.Context(), created.UID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg waitroom.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, waitroom.ActionStarted, msg.Action)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/rooms/nobody/waiting", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, errorStatus(errors.New("boom")))
}
