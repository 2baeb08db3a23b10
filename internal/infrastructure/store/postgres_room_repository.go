// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

const pgUniqueViolation = "23505"

// RoomsSchema creates the rooms table used by PostgresRoomRepository.
const RoomsSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id                    TEXT PRIMARY KEY,
	uid                   TEXT NOT NULL UNIQUE,
	name                  TEXT NOT NULL,
	owner_id              TEXT NOT NULL,
	owner_name            TEXT NOT NULL DEFAULT '',
	owner_email           TEXT NOT NULL DEFAULT '',
	owner_brand_image_url TEXT NOT NULL DEFAULT '',
	bbb_id                TEXT NOT NULL UNIQUE,
	moderator_pw          TEXT NOT NULL,
	attendee_pw           TEXT NOT NULL,
	access_code           TEXT NOT NULL DEFAULT '',
	room_settings         JSONB NOT NULL DEFAULT '{}',
	shared_with           TEXT[] NOT NULL DEFAULT '{}',
	presentation_url      TEXT NOT NULL DEFAULT '',
	sessions              INTEGER NOT NULL DEFAULT 0,
	last_session          TIMESTAMPTZ,
	deleted               BOOLEAN NOT NULL DEFAULT FALSE,
	revision              BIGINT NOT NULL DEFAULT 1,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS rooms_owner_id_idx ON rooms (owner_id) WHERE NOT deleted;
`

const roomColumns = `id, uid, name, owner_id, owner_name, owner_email, owner_brand_image_url,
	bbb_id, moderator_pw, attendee_pw, access_code, room_settings, shared_with,
	presentation_url, sessions, last_session, deleted, created_at, updated_at, revision`

// PgConfig holds connection pool settings.
type PgConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ApplicationName string
}

// NewPgPool opens a pool and verifies it with a ping.
func NewPgPool(ctx context.Context, cfg PgConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ApplicationName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PgQuerier is the subset of *pgxpool.Pool used by the repository.
type PgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRoomRepository stores rooms in PostgreSQL. The revision column
// plays the part of the KV revision for optimistic updates, and the session
// counter is bumped with a single atomic UPDATE.
type PostgresRoomRepository struct {
	db PgQuerier
}

// Ensure that PostgresRoomRepository implements domain.RoomRepository
var _ domain.RoomRepository = (*PostgresRoomRepository)(nil)

func NewPostgresRoomRepository(db PgQuerier) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

// Migrate creates the schema if it does not exist.
func (r *PostgresRoomRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, RoomsSchema); err != nil {
		return fmt.Errorf("failed to migrate rooms schema: %w", err)
	}
	return nil
}

func (r *PostgresRoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO rooms (id, uid, name, owner_id, owner_name, owner_email, owner_brand_image_url,
			bbb_id, moderator_pw, attendee_pw, access_code, room_settings, shared_with, presentation_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	var createdAt, updatedAt time.Time
	err := r.db.QueryRow(ctx, query,
		room.ID, room.UID, room.Name, room.OwnerID, room.OwnerName, room.OwnerEmail, room.OwnerBrandImageURL,
		room.BBBID, room.ModeratorPW, room.AttendeePW, room.AccessCode, room.Settings, sharedWith(room),
		room.PresentationURL,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.NewConflictError(fmt.Sprintf("room %q already exists", room.UID), err)
		}
		return r.internal(ctx, "create", err)
	}
	room.CreatedAt = &createdAt
	room.UpdatedAt = &updatedAt
	return nil
}

func (r *PostgresRoomRepository) RoomExists(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE uid = $1)`, uid).Scan(&exists)
	if err != nil {
		return false, r.internal(ctx, "check", err)
	}
	return exists, nil
}

func (r *PostgresRoomRepository) GetRoom(ctx context.Context, uid string) (*models.Room, error) {
	room, _, err := r.GetRoomWithRevision(ctx, uid)
	return room, err
}

func (r *PostgresRoomRepository) GetRoomWithRevision(ctx context.Context, uid string) (*models.Room, uint64, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE uid = $1 AND NOT deleted`, uid)
	return r.scanRoom(ctx, row, uid)
}

func (r *PostgresRoomRepository) GetRoomByMeetingID(ctx context.Context, bbbID string) (*models.Room, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE bbb_id = $1 AND NOT deleted`, bbbID)
	room, _, err := r.scanRoom(ctx, row, bbbID)
	return room, err
}

func (r *PostgresRoomRepository) UpdateRoom(ctx context.Context, room *models.Room, revision uint64) error {
	query := `
		UPDATE rooms SET name = $2, owner_name = $3, owner_email = $4, owner_brand_image_url = $5,
			access_code = $6, room_settings = $7, shared_with = $8, presentation_url = $9, deleted = $10,
			revision = revision + 1, updated_at = now()
		WHERE uid = $1 AND revision = $11
		RETURNING updated_at`

	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query,
		room.UID, room.Name, room.OwnerName, room.OwnerEmail, room.OwnerBrandImageURL,
		room.AccessCode, room.Settings, sharedWith(room), room.PresentationURL, room.Deleted,
		int64(revision),
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, existsErr := r.RoomExists(ctx, room.UID)
			if existsErr == nil && !exists {
				return roomNotFound(room.UID)
			}
			slog.WarnContext(ctx, "room revision mismatch", "room_uid", room.UID)
			return domain.NewConflictError(fmt.Sprintf("room %q", room.UID), domain.ErrRevisionMismatch)
		}
		return r.internal(ctx, "update", err)
	}
	room.UpdatedAt = &updatedAt
	return nil
}

// IncrementSessions relies on the row lock taken by UPDATE, so concurrent
// calls serialize in the database.
func (r *PostgresRoomRepository) IncrementSessions(ctx context.Context, uid string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE rooms SET sessions = sessions + 1, last_session = $2, revision = revision + 1
		 WHERE uid = $1 AND NOT deleted`,
		uid, at.UTC())
	if err != nil {
		return r.internal(ctx, "update", err)
	}
	if tag.RowsAffected() == 0 {
		return roomNotFound(uid)
	}
	return nil
}

func (r *PostgresRoomRepository) ListRoomsByOwner(ctx context.Context, ownerID string) ([]*models.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE owner_id = $1 AND NOT deleted ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, r.internal(ctx, "list", err)
	}
	defer rows.Close()

	rooms := []*models.Room{}
	for rows.Next() {
		room, _, err := r.scanRoom(ctx, rows, ownerID)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.internal(ctx, "list", err)
	}
	return rooms, nil
}

// scanRoom reads one room row; ref names the lookup in not-found errors.
func (r *PostgresRoomRepository) scanRoom(ctx context.Context, row pgx.Row, ref string) (*models.Room, uint64, error) {
	var (
		room      models.Room
		lastSess  *time.Time
		createdAt time.Time
		updatedAt time.Time
		revision  int64
		shared    []string
	)
	err := row.Scan(
		&room.ID, &room.UID, &room.Name, &room.OwnerID, &room.OwnerName, &room.OwnerEmail,
		&room.OwnerBrandImageURL, &room.BBBID, &room.ModeratorPW, &room.AttendeePW, &room.AccessCode,
		&room.Settings, &shared, &room.PresentationURL, &room.Sessions, &lastSess, &room.Deleted,
		&createdAt, &updatedAt, &revision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, roomNotFound(ref)
		}
		return nil, 0, r.internal(ctx, "read", err)
	}
	room.SharedWith = shared
	room.LastSession = lastSess
	room.CreatedAt = &createdAt
	room.UpdatedAt = &updatedAt
	return &room, uint64(revision), nil
}

func (r *PostgresRoomRepository) internal(ctx context.Context, op string, err error) error {
	slog.ErrorContext(ctx, "error in postgres room "+op, logging.ErrKey, err)
	return domain.NewInternalError(fmt.Sprintf("failed to %s room in store", op), err)
}

func sharedWith(room *models.Room) []string {
	if room.SharedWith == nil {
		return []string{}
	}
	return room.SharedWith
}
