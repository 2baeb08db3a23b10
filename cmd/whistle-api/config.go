// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/bbb"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/email"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/utils"
)

// Room store backends selectable with ROOM_STORE.
const (
	roomStoreNATS     = "nats"
	roomStorePostgres = "postgres"
)

// flags are the command line flags for the whistle service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the whistle service.
type environment struct {
	Port        string
	NatsURL     string
	RoomStore   string
	DatabaseURL string
	// AppBaseURL is the public origin of the web application. When empty it
	// is derived from each request.
	AppBaseURL string
	// WaitingOrigins restricts which origins may open the waiting-room
	// WebSocket. Empty allows any.
	WaitingOrigins []string
	BBB            bbb.Config
	Service        service.ServiceConfig
	Email          emailEnvironment
}

// emailEnvironment configures invitation emails. Without a host they are
// logged and dropped.
type emailEnvironment struct {
	Enabled bool
	SMTP    email.SMTPConfig
}

// parseFlags parses command line flags for the whistle service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [log.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the whistle service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	roomStore := strings.ToLower(os.Getenv("ROOM_STORE"))
	switch roomStore {
	case roomStoreNATS, roomStorePostgres:
	case "":
		roomStore = roomStoreNATS
	default:
		slog.With("room_store", roomStore).Error("unsupported ROOM_STORE, expected nats or postgres")
		os.Exit(1)
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if roomStore == roomStorePostgres && databaseURL == "" {
		slog.Error("DATABASE_URL environment variable is required when ROOM_STORE is postgres")
		os.Exit(1)
	}

	appBaseURL := strings.TrimSuffix(os.Getenv("APP_BASE_URL"), "/")
	if appBaseURL != "" {
		if u, err := url.Parse(appBaseURL); err != nil || !u.IsAbs() {
			slog.With("url", appBaseURL).Error("invalid APP_BASE_URL provided, deriving it from requests")
			appBaseURL = ""
		}
	}

	var waitingOrigins []string
	for _, origin := range strings.Split(os.Getenv("WAITING_ROOM_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			waitingOrigins = append(waitingOrigins, origin)
		}
	}

	return environment{
		Port:           port,
		NatsURL:        natsURL,
		RoomStore:      roomStore,
		DatabaseURL:    databaseURL,
		AppBaseURL:     appBaseURL,
		WaitingOrigins: waitingOrigins,
		BBB:            parseBBBConfig(),
		Service:        parseServiceConfig(),
		Email:          parseEmailConfig(),
	}
}

// parseEmailConfig parses the SMTP settings used for room invitations.
func parseEmailConfig() emailEnvironment {
	cfg := email.SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     envInt("SMTP_PORT", 25),
		From:     utils.Coalesce(os.Getenv("SMTP_FROM"), "no-reply@whistle.local"),
		FromName: os.Getenv("SMTP_FROM_NAME"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}
	return emailEnvironment{
		Enabled: envBool("EMAIL_ENABLED", cfg.Host != ""),
		SMTP:    cfg,
	}
}

// parseBBBConfig parses the conferencing server settings. Without an
// endpoint the service runs against the in-memory fake.
func parseBBBConfig() bbb.Config {
	return bbb.Config{
		Endpoint:          os.Getenv("BBB_ENDPOINT"),
		Secret:            os.Getenv("BBB_SECRET"),
		ChecksumAlgorithm: strings.ToLower(os.Getenv("BBB_CHECKSUM_ALGORITHM")),
		Timeout:           envDuration("BBB_TIMEOUT", bbb.DefaultClientTimeout),
		MaxRetries:        envInt("BBB_MAX_RETRIES", 0),
	}
}

// parseServiceConfig parses plan limits and the site room configuration.
func parseServiceConfig() service.ServiceConfig {
	cfg := service.DefaultServiceConfig()

	cfg.TierLimits.MaxParticipantsCommunity = envInt("MAX_PARTICIPANTS_COMMUNITY", cfg.TierLimits.MaxParticipantsCommunity)
	cfg.TierLimits.MaxParticipantsPlus = envInt("MAX_PARTICIPANTS_PLUS", cfg.TierLimits.MaxParticipantsPlus)
	cfg.TierLimits.MaxParticipantsPro = envInt("MAX_PARTICIPANTS_PRO", cfg.TierLimits.MaxParticipantsPro)
	cfg.CommunityMonthlySessions = envInt("COMMUNITY_MONTHLY_SESSIONS", cfg.CommunityMonthlySessions)
	cfg.InviteTokenCost = envInt("INVITE_TOKEN_COST", cfg.InviteTokenCost)
	cfg.StatusWorkers = envInt("ROOM_STATUS_WORKERS", cfg.StatusWorkers)

	cfg.RoomConfig = models.RoomConfiguration{
		MuteOnJoin:              models.ParseFeatureMode(os.Getenv("ROOM_CONFIG_MUTE_ON_JOIN")),
		RequireModerator:        models.ParseFeatureMode(os.Getenv("ROOM_CONFIG_REQUIRE_MODERATOR")),
		AllJoinModerator:        models.ParseFeatureMode(os.Getenv("ROOM_CONFIG_ALL_JOIN_MODERATOR")),
		AllowAnyStart:           models.ParseFeatureMode(os.Getenv("ROOM_CONFIG_ALLOW_ANY_START")),
		Recording:               models.ParseFeatureMode(os.Getenv("ROOM_CONFIG_RECORDING")),
		RequireRecordingConsent: envBool("REQUIRE_RECORDING_CONSENT", false),
		DefaultRecordingVisible: envBool("DEFAULT_RECORDING_VISIBILITY", false),
		MarketingRoomUID:        os.Getenv("MARKETING_ROOM_UID"),
	}
	return cfg
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key).Warn("invalid integer environment variable, using default")
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key).Warn("invalid boolean environment variable, using default")
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key).Warn("invalid duration environment variable, using default")
		return fallback
	}
	return v
}
