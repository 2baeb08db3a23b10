// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/middleware"
)

// mountRoutes registers every API route on mux.
func mountRoutes(mux goahttp.Muxer, api *WhistleAPI) {
	mux.Handle(http.MethodGet, "/livez", api.Livez)
	mux.Handle(http.MethodGet, "/readyz", api.Readyz)

	mux.Handle(http.MethodPost, "/rooms", api.CreateRoom)
	mux.Handle(http.MethodGet, "/rooms", api.ListRooms)
	mux.Handle(http.MethodGet, "/rooms/{uid}", api.GetRoom)
	mux.Handle(http.MethodDelete, "/rooms/{uid}", api.DeleteRoom)
	mux.Handle(http.MethodPut, "/rooms/{uid}/settings", api.UpdateRoom)
	mux.Handle(http.MethodPut, "/rooms/{uid}/shared_access", api.UpdateSharedAccess)
	mux.Handle(http.MethodGet, "/rooms/{uid}/invite", api.InviteLink)
	mux.Handle(http.MethodPost, "/rooms/{uid}/invitations", api.SendInvitations)
	mux.Handle(http.MethodGet, "/rooms/{uid}/status", api.RoomStatus)

	mux.Handle(http.MethodPost, "/rooms/{uid}/start", api.StartRoom)
	mux.Handle(http.MethodPost, "/rooms/{uid}/join", api.JoinRoom)
	mux.Handle(http.MethodGet, "/rooms/{uid}/waiting", api.WaitingRoom)
	mux.Handle(http.MethodGet, "/sessions/monthly", api.MonthlySessions)

	mux.Handle(http.MethodGet, "/rooms/{uid}/recordings", api.ListRecordings)
	mux.Handle(http.MethodDelete, "/rooms/{uid}/recordings", api.DeleteAllRecordings)
	mux.Handle(http.MethodDelete, "/rooms/{uid}/recordings/{record_id}", api.DeleteRecording)
	mux.Handle(http.MethodPatch, "/rooms/{uid}/recordings/{record_id}", api.UpdateRecording)
	mux.Handle(http.MethodPut, "/rooms/{uid}/recordings/{record_id}/visibility", api.UpdateRecordingVisibility)
	mux.Handle(http.MethodGet, "/rooms/{uid}/recordings_count", api.RecordingsCount)
	mux.Handle(http.MethodGet, "/recordings", api.ListMyRecordings)

	mux.Handle(http.MethodGet, "/meetings", api.RunningMeetings)
}

// newHandler builds the API handler with its middleware chain.
func newHandler(api *WhistleAPI) http.Handler {
	mux := goahttp.NewMuxer()
	mountRoutes(mux, api)

	var handler http.Handler = mux

	// Add HTTP middleware
	// Note: Order matters - RequestIDMiddleware should come first in the chain,
	// so it should be the last middleware added to the handler since it is executed in reverse order.
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = middleware.RequestIDMiddleware()(handler)
	handler = middleware.AuthorizationMiddleware()(handler)

	return otelhttp.NewHandler(handler, "whistle-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/livez" && r.URL.Path != "/readyz"
		}),
	)
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, api *WhistleAPI, gracefulCloseWG *sync.WaitGroup) *http.Server {
	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newHandler(api),
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}
