// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-whistle-service/cmd/whistle-api/service"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/waitroom"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	svc "github.com/linuxfoundation/lfx-v2-whistle-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/utils"
)

// WhistleAPI serves the REST and WebSocket API of the whistle service.
type WhistleAPI struct {
	authService      *svc.AuthService
	roomService      *svc.RoomService
	sessionService   *svc.SessionService
	recordingService *svc.RecordingService
	invitations      *svc.InvitationService
	waitingRoom      *waitroom.Server
	roomHandler      *handlers.RoomHandler
	// baseURL overrides the origin derived from requests when set.
	baseURL string
}

// NewWhistleAPI creates a new WhistleAPI.
func NewWhistleAPI(
	authService *svc.AuthService,
	roomService *svc.RoomService,
	sessionService *svc.SessionService,
	recordingService *svc.RecordingService,
	invitations *svc.InvitationService,
	waitingRoom *waitroom.Server,
	roomHandler *handlers.RoomHandler,
	baseURL string,
) *WhistleAPI {
	return &WhistleAPI{
		authService:      authService,
		roomService:      roomService,
		sessionService:   sessionService,
		recordingService: recordingService,
		invitations:      invitations,
		waitingRoom:      waitingRoom,
		roomHandler:      roomHandler,
		baseURL:          baseURL,
	}
}

// ServiceReady reports whether every service behind the API is ready.
func (s *WhistleAPI) ServiceReady() bool {
	return s.authService.ServiceReady() &&
		s.roomService.ServiceReady() &&
		s.sessionService.ServiceReady() &&
		s.recordingService.ServiceReady() &&
		s.invitations.ServiceReady() &&
		s.waitingRoom != nil &&
		s.roomHandler.HandlerReady()
}

// Readyz checks if the service is able to take inbound requests.
func (s *WhistleAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	if !s.ServiceReady() {
		s.handleError(w, r, domain.ErrServiceUnavailable)
		return
	}
	writeText(w, http.StatusOK, "OK\n")
}

// Livez checks if the service is alive.
func (s *WhistleAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	writeText(w, http.StatusOK, "OK\n")
}

// errorStatus maps an error to its HTTP status code.
func errorStatus(err error) int {
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return http.StatusServiceUnavailable
	}
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrorTypeForbidden:
		return http.StatusForbidden
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeExternalService:
		return http.StatusBadGateway
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes err as an ErrorResponse. Internal and conferencing
// server errors are logged and their details withheld from the client.
func (s *WhistleAPI) handleError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorStatus(err)
	message := err.Error()
	switch code {
	case http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "internal error handling request", logging.ErrKey, err)
		message = domain.ErrInternal.Error()
	case http.StatusBadGateway:
		slog.WarnContext(r.Context(), "conferencing server error handling request", logging.ErrKey, err)
		message = domain.ErrConferencing.Error()
	default:
		slog.DebugContext(r.Context(), "request failed", logging.ErrKey, err, "status", code)
	}
	writeJSON(w, r, code, &service.ErrorResponse{
		Code:    strconv.Itoa(code),
		Message: message,
	})
}

// writeJSON encodes body with the goa response encoder negotiated from the
// request's Accept header.
func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	enc := goahttp.ResponseEncoder(r.Context(), w)
	w.WriteHeader(code)
	if body == nil {
		return
	}
	if err := enc.Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "error encoding response", logging.ErrKey, err)
	}
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

// decodeBody decodes the request body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	if err := goahttp.RequestDecoder(r).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("invalid request body: "+err.Error(), domain.ErrValidationFailed)
	}
	return nil
}

// requester resolves the caller from the bearer token that the authorization
// middleware put in the context. Requests without a token are guests.
func (s *WhistleAPI) requester(r *http.Request) (svc.Requester, error) {
	ctx := r.Context()
	token, _ := ctx.Value(constants.AuthorizationContextID).(string)
	return s.authService.ParseRequester(ctx, token, slog.Default())
}

// authenticated is requester for routes that guests may not call.
func (s *WhistleAPI) authenticated(r *http.Request) (svc.Requester, error) {
	requester, err := s.requester(r)
	if err != nil {
		return requester, err
	}
	if !requester.Authenticated() {
		return requester, domain.NewUnauthorizedError("sign in required", domain.ErrUnauthorized)
	}
	return requester, nil
}

// withRequester adds the requester's id to the request's log context.
func withRequester(ctx context.Context, requester svc.Requester) context.Context {
	if !requester.Authenticated() {
		return ctx
	}
	ctx = context.WithValue(ctx, constants.PrincipalContextID, requester.UserID)
	return logging.AppendCtx(ctx, slog.String("principal", requester.UserID))
}

// origin returns the scheme and host clients use to reach the application.
func (s *WhistleAPI) origin(r *http.Request) (string, string) {
	host := utils.Coalesce(firstValue(r.Header.Get(constants.ForwardedHostHeader)), r.Host)
	if s.baseURL != "" {
		return s.baseURL, host
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	scheme = utils.Coalesce(firstValue(r.Header.Get(constants.ForwardedProtoHeader)), scheme)
	return scheme + "://" + host, host
}

// firstValue returns the first entry of a comma separated proxy header.
func firstValue(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

// requestContext captures what the options builder needs from the request.
func (s *WhistleAPI) requestContext(r *http.Request, requester svc.Requester, consent bool, banner string) models.RequestContext {
	baseURL, host := s.origin(r)
	return models.RequestContext{
		BaseURL:          baseURL,
		Host:             host,
		RequesterID:      requester.UserID,
		RequesterName:    requester.Name,
		RecordingConsent: consent,
		BannerMessage:    banner,
	}
}

// isMember reports whether the requester owns the room or was given access.
func isMember(room *models.Room, requester svc.Requester) bool {
	return requester.Authenticated() &&
		(room.OwnedBy(requester.UserID) || room.SharedWithUser(requester.UserID))
}
