// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the whistle service API that provides a RESTful API for
// managing conference rooms and their BigBlueButton sessions, and handles
// NATS messages for the whistle service.
package main

import (
	"context"
	_ "expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/waitroom"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/utils"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Initialize email service (independent of NATS)
	emailService, err := setupEmailService(env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up email service")
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
		}
	}()

	// Set up JWT validator used to resolve the requester of each API call.
	jwtAuth, err := setupJWTAuth()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up JWT authentication")
		os.Exit(1)
	}

	conferencing, err := setupConferencing(env.BBB)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up conferencing client")
		os.Exit(1)
	}

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	// Get the key-value stores for the service.
	repos, err := getKeyValueStores(ctx, env, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	// Initialize services
	messageBuilder := messaging.NewMessageBuilder(natsConn)
	authService := service.NewAuthService(jwtAuth)
	roomService := service.NewRoomService(
		repos.Room,
		conferencing,
		messageBuilder,
		env.Service,
	)
	sessionService := service.NewSessionService(
		repos.Room,
		repos.Subscription,
		repos.MonthlySession,
		conferencing,
		messageBuilder,
		env.Service,
	)
	recordingService := service.NewRecordingService(conferencing)
	invitationService := service.NewInvitationService(roomService, emailService)

	// Guests waiting on this replica are released by the session started
	// events every replica receives.
	hub := waitroom.NewHub()
	waitingRoom := waitroom.NewServer(hub, allowedOrigins(env.WaitingOrigins))

	// Initialize handlers
	roomHandler := handlers.NewRoomHandler(sessionService, recordingService, hub)

	api := NewWhistleAPI(
		authService,
		roomService,
		sessionService,
		recordingService,
		invitationService,
		waitingRoom,
		roomHandler,
		env.AppBaseURL,
	)

	httpServer := setupHTTPServer(flags, api, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	err = createNatsSubscriptions(ctx, roomHandler, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, repos, &gracefulCloseWG, cancel)
}

// allowedOrigins returns the waiting room origin check. No origins allows
// any.
func allowedOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		return slices.Contains(origins, r.Header.Get("Origin"))
	}
}
