package syncservice

import (
	"context"
	"fmt"
	"time"

	"github.com/creativehub/sync-api/internal/auth"
	"github.com/creativehub/sync-api/internal/entity"
	"github.com/creativehub/sync-api/internal/syncx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TypeStatus aggregates one entity type for the status endpoint. Count
// covers live rows only; tombstones still contribute to max_version so
// a client can tell its replica is behind.
type TypeStatus struct {
	Count       int64   `json:"count"`
	MaxVersion  int64   `json:"max_version"`
	LastUpdated *string `json:"last_updated"`
}

// StatusResponse is the response body for GET /sync/status.
type StatusResponse struct {
	Entities     map[string]TypeStatus `json:"entities"`
	PendingCount int64                 `json:"pending_count"`
	LastSync     *string               `json:"last_sync"`
	ServerTime   string                `json:"server_time"`
}

// StatusService is a read-only aggregate over the entity store, scoped
// to rows the principal owns.
type StatusService struct {
	DB    *pgxpool.Pool
	Audit *AuditLogger
}

// NewStatusService wires the status aggregate.
func NewStatusService(db *pgxpool.Pool, audit *AuditLogger) *StatusService {
	return &StatusService{DB: db, Audit: audit}
}

// Status reports per-type counts and versions plus the number of rows
// still awaiting acknowledgment (needs_sync) across all types.
func (s *StatusService) Status(ctx context.Context, p auth.Principal) (*StatusResponse, error) {
	resp := &StatusResponse{
		Entities: make(map[string]TypeStatus, len(entity.Types())),
	}

	for _, typ := range entity.Types() {
		var (
			count       int64
			maxVersion  int64
			pending     int64
			lastUpdated *time.Time
		)
		err := s.DB.QueryRow(ctx, fmt.Sprintf(`
			SELECT COUNT(*) FILTER (WHERE deleted_at IS NULL),
				COALESCE(MAX(sync_version), 0),
				COUNT(*) FILTER (WHERE needs_sync),
				MAX(updated_at)
			FROM %s WHERE owner_id = $1
		`, typ), p.ID).Scan(&count, &maxVersion, &pending, &lastUpdated)
		if err != nil {
			return nil, err
		}

		ts := TypeStatus{Count: count, MaxVersion: maxVersion}
		if lastUpdated != nil {
			formatted := syncx.RFC3339(*lastUpdated)
			ts.LastUpdated = &formatted
		}
		resp.Entities[typ] = ts
		resp.PendingCount += pending
	}

	last, err := s.Audit.LastSync(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	resp.LastSync = last

	resp.ServerTime = syncx.RFC3339(time.Now())
	return resp, nil
}
