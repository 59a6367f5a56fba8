package syncservice

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// AuditEntry is one immutable sync_log record. One is written per push
// item regardless of outcome. NewVersion is the row's actual
// post-operation version, not an assumed increment; for rejected or
// skipped items it equals the version that remained authoritative.
type AuditEntry struct {
	UserID             string
	EntityType         string
	EntityUUID         uuid.UUID
	Action             string
	OldVersion         int64
	NewVersion         int64
	ConflictDetected   bool
	ConflictResolution *string
	DeviceID           *string
}

// AuditLogger appends to the append-only sync_log table. Rows are never
// updated or deleted; the table exists for audit and debugging, not for
// replay or recovery.
type AuditLogger struct {
	DB *pgxpool.Pool
}

// Append writes the batch outside the push transaction, best-effort. A
// failure here must never fail the push that produced the entries, so
// callers log the returned error and move on.
func (a *AuditLogger) Append(ctx context.Context, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(`
			INSERT INTO sync_log (user_id, entity_type, entity_uuid, action,
				old_version, new_version, conflict_detected, conflict_resolution, device_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, e.UserID, e.EntityType, e.EntityUUID, e.Action,
			e.OldVersion, e.NewVersion, e.ConflictDetected, e.ConflictResolution, e.DeviceID)
	}

	br := a.DB.SendBatch(ctx, b)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}

	log.Debug().Int("entries", len(entries)).Msg("sync audit appended")
	return nil
}

// LastSync returns the most recent audit timestamp for a user, formatted
// RFC3339, or nil if the user has never pushed.
func (a *AuditLogger) LastSync(ctx context.Context, userID string) (*string, error) {
	var last *string
	err := a.DB.QueryRow(ctx, `
		SELECT to_char(MAX(created_at) AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
		FROM sync_log WHERE user_id = $1
	`, userID).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}
