// Package store is the generic per-entity-type table abstraction the
// sync engine reads and writes through. All operations are scoped to a
// single entity type; type names double as table names and are validated
// against the registry before being interpolated into SQL.
//
// Version bumps are explicit: the conditional update takes the expected
// version and increments it in the same statement, so the compare and
// the bump are one atomic act and two concurrent pushes can never both
// believe they won.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creativehub/sync-api/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by Get when no row exists for the uuid.
var ErrNotFound = errors.New("entity not found")

// ErrUnknownType is returned for entity types outside the registry.
var ErrUnknownType = errors.New("unknown entity type")

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every store
// operation can run standalone or inside the push transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Entity is one row of a syncable table. The internal bigserial id is
// deliberately absent; it never leaves the database.
type Entity struct {
	UID          uuid.UUID
	OwnerID      string
	TeamID       *string
	ShareLevel   string
	SharedWith   []string
	Attrs        map[string]any
	SyncVersion  int64
	NeedsSync    bool
	DeletedAt    *time.Time
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fields carries the client-writable portion of a mutation. Attrs keys
// are merged into the existing attrs document; nil ShareLevel and
// SharedWith leave their columns unchanged.
type Fields struct {
	ShareLevel *string
	SharedWith []string
	Attrs      map[string]any
}

const entityColumns = `uuid, owner_id, team_id, share_level, shared_with, attrs,
	sync_version, needs_sync, deleted_at, last_synced_at, created_at, updated_at`

func tableFor(entityType string) (string, error) {
	if !entity.IsSyncable(entityType) {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, entityType)
	}
	return entityType, nil
}

func scanEntity(row pgx.Row) (*Entity, error) {
	var e Entity
	err := row.Scan(&e.UID, &e.OwnerID, &e.TeamID, &e.ShareLevel, &e.SharedWith,
		&e.Attrs, &e.SyncVersion, &e.NeedsSync, &e.DeletedAt, &e.LastSyncedAt,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Get fetches one entity by uuid, tombstones included.
func Get(ctx context.Context, q Querier, entityType string, uid uuid.UUID) (*Entity, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}
	row := q.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE uuid = $1`, entityColumns, table), uid)
	return scanEntity(row)
}

// Insert creates a fresh row at sync_version 1 with needs_sync cleared.
func Insert(ctx context.Context, q Querier, entityType string, uid uuid.UUID,
	ownerID string, teamID *string, f Fields) error {

	table, err := tableFor(entityType)
	if err != nil {
		return err
	}

	shareLevel := entity.SharePrivate
	if f.ShareLevel != nil && entity.ValidShareLevel(*f.ShareLevel) {
		shareLevel = *f.ShareLevel
	}
	sharedWith := f.SharedWith
	if sharedWith == nil {
		sharedWith = []string{}
	}
	attrs := f.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}

	_, err = q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (uuid, owner_id, team_id, share_level, shared_with, attrs,
			sync_version, needs_sync, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, FALSE, NOW())
	`, table), uid, ownerID, teamID, shareLevel, sharedWith, attrs)
	return err
}

// Update applies fields and bumps sync_version by exactly 1, but only if
// the row is still at expectedVersion. Returns the resulting version and
// whether the write landed; applied=false means a concurrent writer got
// there first and the caller should re-read and treat it as a conflict.
func Update(ctx context.Context, q Querier, entityType string, uid uuid.UUID,
	expectedVersion int64, f Fields) (applied bool, newVersion int64, err error) {
	return update(ctx, q, entityType, uid, &expectedVersion, f)
}

// ForceUpdate is the conflict-winner path: same write, no version guard.
// The version still increments so the change propagates to other devices.
func ForceUpdate(ctx context.Context, q Querier, entityType string, uid uuid.UUID,
	f Fields) (newVersion int64, err error) {
	_, v, err := update(ctx, q, entityType, uid, nil, f)
	return v, err
}

func update(ctx context.Context, q Querier, entityType string, uid uuid.UUID,
	expectedVersion *int64, f Fields) (bool, int64, error) {

	table, err := tableFor(entityType)
	if err != nil {
		return false, 0, err
	}

	attrs := f.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	var shareLevel any
	if f.ShareLevel != nil && entity.ValidShareLevel(*f.ShareLevel) {
		shareLevel = *f.ShareLevel
	}
	var sharedWith any
	if f.SharedWith != nil {
		sharedWith = f.SharedWith
	}

	sql := fmt.Sprintf(`
		UPDATE %s SET
			attrs          = attrs || $1::jsonb,
			share_level    = COALESCE($2, share_level),
			shared_with    = COALESCE($3::jsonb, shared_with),
			sync_version   = sync_version + 1,
			needs_sync     = FALSE,
			last_synced_at = NOW(),
			updated_at     = NOW()
		WHERE uuid = $4`, table)
	args := []any{attrs, shareLevel, sharedWith, uid}
	if expectedVersion != nil {
		sql += ` AND sync_version = $5`
		args = append(args, *expectedVersion)
	}
	sql += ` RETURNING sync_version`

	var v int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, v, nil
}

// SoftDelete tombstones the row behind the same version guard as Update.
func SoftDelete(ctx context.Context, q Querier, entityType string, uid uuid.UUID,
	expectedVersion int64) (applied bool, newVersion int64, err error) {
	return softDelete(ctx, q, entityType, uid, &expectedVersion)
}

// ForceSoftDelete tombstones the row unconditionally (conflict winner).
func ForceSoftDelete(ctx context.Context, q Querier, entityType string, uid uuid.UUID) (int64, error) {
	_, v, err := softDelete(ctx, q, entityType, uid, nil)
	return v, err
}

func softDelete(ctx context.Context, q Querier, entityType string, uid uuid.UUID,
	expectedVersion *int64) (bool, int64, error) {

	table, err := tableFor(entityType)
	if err != nil {
		return false, 0, err
	}

	sql := fmt.Sprintf(`
		UPDATE %s SET
			deleted_at     = COALESCE(deleted_at, NOW()),
			sync_version   = sync_version + 1,
			needs_sync     = FALSE,
			last_synced_at = NOW(),
			updated_at     = NOW()
		WHERE uuid = $1`, table)
	args := []any{uid}
	if expectedVersion != nil {
		sql += ` AND sync_version = $2`
		args = append(args, *expectedVersion)
	}
	sql += ` RETURNING sync_version`

	var v int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, v, nil
}
