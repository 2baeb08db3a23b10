// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/bbb"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/email"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/concurrent"
)

const (
	// gracefulShutdownSeconds should be higher than NATS client
	// request timeout, and lower than the pod or liveness probe's
	// terminationGracePeriodSeconds.
	gracefulShutdownSeconds = 25
	// fakeConferencingURL is where join URLs point when no conferencing
	// server is configured.
	fakeConferencingURL = "http://localhost:8090/bigbluebutton/api"
)

// repositories are the stores backing the services.
type repositories struct {
	Room           domain.RoomRepository
	Subscription   domain.SubscriptionProvider
	MonthlySession domain.MonthlySessionRepository
	// pool is set when rooms live in PostgreSQL.
	pool *pgxpool.Pool
}

// setupJWTAuth configures JWT authentication for the service
func setupJWTAuth() (*auth.JWTAuth, error) {
	jwtAuthConfig := auth.JWTAuthConfig{
		JWKSURL:            os.Getenv("JWKS_URL"),
		Audience:           os.Getenv("JWT_AUDIENCE"),
		MockLocalPrincipal: os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"),
	}
	return auth.NewJWTAuth(jwtAuthConfig)
}

// setupEmailService returns the SMTP service, or the no-op service when
// emails are disabled.
func setupEmailService(env environment) (domain.EmailService, error) {
	if !env.Email.Enabled || env.Email.SMTP.Host == "" {
		slog.Info("email service disabled, invitations will be logged only")
		return email.NewNoOpService(), nil
	}
	svc, err := email.NewSMTPService(env.Email.SMTP)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP service: %w", err)
	}
	slog.With("smtp_host", env.Email.SMTP.Host, "smtp_port", env.Email.SMTP.Port).Info("email service enabled")
	return svc, nil
}

// setupConferencing returns the BigBlueButton client, or the in-memory fake
// when no server is configured.
func setupConferencing(cfg bbb.Config) (domain.ConferencingClient, error) {
	if !cfg.IsConfigured() {
		slog.Warn("BBB_ENDPOINT or BBB_SECRET not set, using the in-memory conferencing fake")
		return bbb.NewFakeClient(fakeConferencingURL), nil
	}
	client, err := bbb.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigBlueButton client: %w", err)
	}
	slog.With("endpoint", cfg.Endpoint).Info("using BigBlueButton server")
	return client, nil
}

// setupNATS connects to NATS. The connection's closed handler releases the
// graceful close wait group, and an unexpected close stops the service.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	slog.With("nats_url", env.NatsURL).InfoContext(ctx, "attempting to connect to NATS")

	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.Name("lfx-v2-whistle-service"),
		nats.DrainTimeout(gracefulShutdownSeconds*time.Second),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", env.NatsURL).Info("NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Our parent context has been cancelled, so this is an
				// expected close during shutdown.
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS connection closed unexpectedly")
			gracefulCloseWG.Done()
			done <- os.Interrupt
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return natsConn, nil
}

// getKeyValueStores binds the repositories to their JetStream buckets, or to
// PostgreSQL for rooms when ROOM_STORE is postgres.
func getKeyValueStores(ctx context.Context, env environment, natsConn *nats.Conn) (*repositories, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	keyValue := func(bucket string) (jetstream.KeyValue, error) {
		kv, err := js.KeyValue(ctx, bucket)
		if err != nil {
			slog.ErrorContext(ctx, "error getting NATS JetStream key-value store", logging.ErrKey, err, "store", bucket)
			return nil, fmt.Errorf("failed to get key-value store %q: %w", bucket, err)
		}
		return kv, nil
	}

	// The buckets are looked up in parallel; each lookup is a JetStream round trip.
	var subscriptions, monthly, roomsKV jetstream.KeyValue
	lookups := []func() error{
		func() (err error) {
			subscriptions, err = keyValue(store.KVStoreNameSubscriptions)
			return err
		},
		func() (err error) {
			monthly, err = keyValue(store.KVStoreNameMonthlySessions)
			return err
		},
	}
	if env.RoomStore != roomStorePostgres {
		lookups = append(lookups, func() (err error) {
			roomsKV, err = keyValue(store.KVStoreNameRooms)
			return err
		})
	}
	if errs := concurrent.NewWorkerPool(len(lookups)).RunAll(ctx, lookups...); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	repos := &repositories{
		Subscription:   store.NewNatsSubscriptionRepository(subscriptions),
		MonthlySession: store.NewNatsMonthlySessionRepository(monthly),
	}

	if env.RoomStore == roomStorePostgres {
		pool, err := store.NewPgPool(ctx, store.PgConfig{
			DSN:             env.DatabaseURL,
			ApplicationName: "lfx-v2-whistle-service",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		rooms := store.NewPostgresRoomRepository(pool)
		if err := rooms.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		repos.Room = rooms
		repos.pool = pool
		slog.InfoContext(ctx, "rooms are stored in postgres")
		return repos, nil
	}

	repos.Room = store.NewNatsRoomRepository(roomsKV)
	return repos, nil
}

// createNatsSubscriptions subscribes the room handler to its subjects.
// Request/reply and cleanup subjects use the queue group so one replica
// answers; session started events reach every replica, since each holds its
// own waiting guests.
func createNatsSubscriptions(ctx context.Context, handler domain.MessageHandler, natsConn *nats.Conn) error {
	slog.InfoContext(ctx, "subscribing to NATS subjects")

	callback := func(msg *nats.Msg) {
		handler.HandleMessage(context.Background(), &messaging.NatsMessage{Msg: msg})
	}

	queueSubjects := []string{models.RoomRunningSubject, models.RoomDeletedSubject}
	for _, subject := range queueSubjects {
		if _, err := natsConn.QueueSubscribe(subject, models.WhistleAPIQueue, callback); err != nil {
			slog.ErrorContext(ctx, "error creating NATS queue subscription", logging.ErrKey, err, "subject", subject)
			return err
		}
	}

	if _, err := natsConn.Subscribe(models.RoomSessionStartedSubject, callback); err != nil {
		slog.ErrorContext(ctx, "error creating NATS subscription", logging.ErrKey, err, "subject", models.RoomSessionStartedSubject)
		return err
	}

	slog.With("subjects", slices.Concat(queueSubjects, []string{models.RoomSessionStartedSubject})).
		InfoContext(ctx, "subscribed to NATS subjects")
	return nil
}

// gracefulShutdown stops the HTTP server, drains NATS and closes the
// database pool, then waits for the listeners to finish.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, repos *repositories, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.Info("received shutdown signal, stopping listeners")
	// Cancelling the parent context marks the upcoming NATS close as expected.
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	go func() {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		// Decrement the wait group once the server has shut down.
		gracefulCloseWG.Done()
	}()

	if natsConn != nil && !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
			// Skip waiting for the closed handler since draining failed.
			gracefulCloseWG.Done()
		}
	}

	// Wait for the HTTP server and NATS to shut down before closing the pool
	// their in-flight requests may still be using.
	gracefulCloseWG.Wait()

	if repos != nil && repos.pool != nil {
		repos.pool.Close()
	}
	slog.Info("graceful shutdown complete")
}
