package syncservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/creativehub/sync-api/internal/auth"
	"github.com/creativehub/sync-api/internal/entity"
	"github.com/creativehub/sync-api/internal/syncx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ChangeRecord is one server-side change emitted by pull. Internal-only
// fields (row id, needs_sync) are stripped and jsonb attrs are decoded
// into structured values.
type ChangeRecord struct {
	EntityType string         `json:"entity_type"`
	UUID       string         `json:"uuid"`
	Action     string         `json:"action"` // upsert or delete
	Data       map[string]any `json:"data,omitempty"`
	Version    int64          `json:"version"`
	UpdatedAt  string         `json:"updated_at"`

	updatedUs int64
	uid       uuid.UUID
}

// PullResponse is the response body for GET /sync/pull.
type PullResponse struct {
	Changes    []ChangeRecord `json:"changes"`
	ServerTime string         `json:"server_time"`
	HasMore    bool           `json:"has_more"`
	// NextCursor is a strictly monotonic (updated_at, uuid) position;
	// passing it back avoids the same-timestamp skip/duplicate window a
	// bare watermark has.
	NextCursor *string `json:"next_cursor,omitempty"`
}

// ErrUnknownEntityType is returned when a pull names a type outside the
// registry; the handler maps it to a 400.
var ErrUnknownEntityType = errors.New("unknown entity type")

// PullService computes the set of changes visible to a principal since a
// watermark, merged across entity types. Read-only: pull never mutates
// state and takes no locks, so it is a point-in-time snapshot, not a
// linearizable read.
type PullService struct {
	DB       *pgxpool.Pool
	PageSize int // per-type row cap per call
}

// NewPullService wires the pull path with its per-type page cap.
func NewPullService(db *pgxpool.Pool, pageSize int) *PullService {
	return &PullService{DB: db, PageSize: pageSize}
}

// Pull returns everything past cur that the principal may see: rows it
// owns, team rows shared at team or public level, and rows granting it
// explicitly via shared_with. types restricts the scan; empty means all
// syncable types. limit lowers the per-type page cap for this call;
// zero or anything above the configured cap means the cap. HasMore is
// set when any single type hit the cap.
func (s *PullService) Pull(ctx context.Context, p auth.Principal, cur syncx.Cursor,
	types []string, limit int) (*PullResponse, error) {

	pageSize := s.PageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	if len(types) == 0 {
		types = entity.Types()
	} else {
		for _, t := range types {
			if !entity.IsSyncable(t) {
				return nil, fmt.Errorf("%w %q", ErrUnknownEntityType, t)
			}
		}
	}

	resp := &PullResponse{Changes: make([]ChangeRecord, 0)}

	// Cursor for the next page: for capped types we must resume from
	// that type's last returned row; taking the minimum across capped
	// types guarantees no skips. Uncapped types may re-send a few rows,
	// which upsert semantics absorb.
	var next *syncx.Cursor

	for _, typ := range types {
		changes, err := s.pullType(ctx, p, typ, cur, pageSize)
		if err != nil {
			return nil, err
		}
		capped := len(changes) == pageSize
		if capped {
			resp.HasMore = true
			last := changes[len(changes)-1]
			c := syncx.Cursor{Us: last.updatedUs, UID: last.uid}
			if next == nil || c.Us < next.Us || (c.Us == next.Us && c.UID.String() < next.UID.String()) {
				next = &c
			}
		}
		resp.Changes = append(resp.Changes, changes...)
	}

	// Deterministic merged ordering: ascending updated_at, then type,
	// then uuid for equal timestamps.
	sort.SliceStable(resp.Changes, func(i, j int) bool {
		a, b := resp.Changes[i], resp.Changes[j]
		if a.updatedUs != b.updatedUs {
			return a.updatedUs < b.updatedUs
		}
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		return a.uid.String() < b.uid.String()
	})

	if next == nil && len(resp.Changes) > 0 {
		last := resp.Changes[len(resp.Changes)-1]
		next = &syncx.Cursor{Us: last.updatedUs, UID: last.uid}
	}
	if next != nil {
		encoded := syncx.EncodeCursor(*next)
		resp.NextCursor = &encoded
	}

	resp.ServerTime = syncx.RFC3339(time.Now())
	return resp, nil
}

func (s *PullService) pullType(ctx context.Context, p auth.Principal, typ string,
	cur syncx.Cursor, pageSize int) ([]ChangeRecord, error) {

	var team any
	if p.Team != "" {
		team = p.Team
	}

	// Type names are registry-validated before reaching this query.
	// The cursor timestamp is Unix microseconds, the same precision as
	// TIMESTAMPTZ, so the strictly-greater compare starts exactly after
	// the last returned row and the uuid tie-break engages on ties.
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`
		SELECT uuid, owner_id, team_id, share_level, shared_with, attrs,
			sync_version, deleted_at, updated_at
		FROM %s
		WHERE (owner_id = $1
			OR (team_id IS NOT NULL AND team_id = $2 AND share_level IN ('team', 'public'))
			OR shared_with ? $1)
		  AND (updated_at, uuid) > (to_timestamp($3::double precision / 1000000.0), $4::uuid)
		ORDER BY updated_at, uuid
		LIMIT $5
	`, typ), p.ID, team, cur.Us, cur.UID, pageSize)
	if err != nil {
		log.Error().Err(err).Str("entityType", typ).Msg("pull query failed")
		return nil, err
	}
	defer rows.Close()

	out := make([]ChangeRecord, 0)
	for rows.Next() {
		var (
			uid        uuid.UUID
			ownerID    string
			teamID     *string
			shareLevel string
			sharedWith []string
			attrs      map[string]any
			version    int64
			deletedAt  *time.Time
			updatedAt  time.Time
		)
		if err := rows.Scan(&uid, &ownerID, &teamID, &shareLevel, &sharedWith,
			&attrs, &version, &deletedAt, &updatedAt); err != nil {
			return nil, err
		}

		rec := ChangeRecord{
			EntityType: typ,
			UUID:       uid.String(),
			Action:     syncx.ActionUpsert,
			Version:    version,
			UpdatedAt:  syncx.RFC3339(updatedAt),
			updatedUs:  updatedAt.UTC().UnixMicro(),
			uid:        uid,
		}

		if deletedAt != nil {
			// Tombstone: deletion propagates as a delete change until
			// every replica has seen it. Never surfaced as upsert again.
			rec.Action = syncx.ActionDelete
		} else {
			data := make(map[string]any, len(attrs)+4)
			for k, v := range attrs {
				data[k] = v
			}
			data["owner_id"] = ownerID
			if teamID != nil {
				data["team_id"] = *teamID
			}
			data[entity.FieldShareLevel] = shareLevel
			data[entity.FieldSharedWith] = sharedWith
			rec.Data = data
		}

		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
